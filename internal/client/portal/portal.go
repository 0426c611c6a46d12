// Package portal wires the client side of sign-in: the backend client, the
// persisted store, the token mirror, the session provider and the merger.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	articledomain "github.com/AveryLor/BiasBreaker-sub000/internal/article/domain"
	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/merger"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/mirror"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/session"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/store"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"

	"go.uber.org/zap"
)

var ErrNotSignedIn = errors.New("not signed in")

type Portal struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	jar      *store.Jar
	http     *http.Client
	backend  *newsapi.Client
	sessions *session.Provider
	mirror   *mirror.Mirror
	merger   *merger.Merger

	mu        sync.Mutex
	redirects []string
}

// Open opens the persisted store at cfg.ClientStorePath.
func Open(cfg *config.Config, log *zap.Logger) (*Portal, error) {
	if dir := filepath.Dir(cfg.ClientStorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(cfg.ClientStorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	p, err := New(cfg, st, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return p, nil
}

func New(cfg *config.Config, st *store.Store, log *zap.Logger) (*Portal, error) {
	site, err := url.Parse(cfg.PortalURL)
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("invalid portal url %q", cfg.PortalURL)
	}

	jar := store.NewJar(st, site)
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: cfg.NewsAPITimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	p := &Portal{
		cfg:      cfg,
		log:      log.Named("portal"),
		store:    st,
		jar:      jar,
		http:     httpClient,
		backend:  newsapi.NewClient(cfg.NewsAPIURL, cfg.NewsAPITimeout, log),
		sessions: session.New(cfg.PortalURL, httpClient, cfg.SessionRefreshInterval, log),
	}
	p.mirror = mirror.New(st, jar, mirror.Config{Interval: cfg.MirrorInterval, MaxAge: cfg.MirrorMaxAge}, log)
	p.merger = merger.New(st, jar, p.sessions, p.backend, p.recordRedirect, merger.Config{
		SignInPath: cfg.SignInPath,
		Timeout:    cfg.AuthWaitTimeout,
		MirrorName: mirror.CookieName,
	}, log)
	return p, nil
}

// Start launches the mirror and the session poller.
func (p *Portal) Start(ctx context.Context) {
	p.mirror.Start(ctx)
	p.sessions.Start(ctx)
}

func (p *Portal) Close() error {
	p.sessions.Stop()
	p.mirror.Stop()
	return p.store.Close()
}

func (p *Portal) recordRedirect(location string) {
	p.mu.Lock()
	p.redirects = append(p.redirects, location)
	p.mu.Unlock()
	p.log.Debug("redirect", zap.String("location", location))
}

// Redirects lists the sign-in redirects the merger has issued.
func (p *Portal) Redirects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.redirects...)
}

// Login tries the backend token flow first and persists the result. When a
// token is issued but the identity lookup fails, it falls back to the
// gateway's session sign-in. A gateway session is opened either way.
func (p *Portal) Login(ctx context.Context, email, password string) (*authdomain.Identity, error) {
	tok := p.backend.IssueToken(ctx, newsapi.LoginInput{Email: email, Password: password})
	if !tok.Success {
		return nil, errors.New(tok.Message)
	}

	user := p.backend.CurrentUser(ctx, tok.Data.AccessToken)
	if !user.Success {
		p.log.Info("identity lookup failed, falling back to session sign-in", zap.String("message", user.Message))
		result, err := p.sessions.SignIn(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if result.AccessToken != "" && result.User != nil {
			if err := p.store.SaveCredential(ctx, result.AccessToken, result.User); err != nil {
				return nil, err
			}
		}
		p.mirror.Sync(ctx)
		return result.User, nil
	}

	if err := p.store.SaveCredential(ctx, tok.Data.AccessToken, user.Data); err != nil {
		return nil, err
	}
	p.mirror.Sync(ctx)
	if _, err := p.sessions.SignIn(ctx, email, password); err != nil {
		p.log.Warn("gateway session sign-in failed", zap.Error(err))
	}
	return user.Data, nil
}

// Logout clears the persisted credential, the mirror cookie and the portal
// session.
func (p *Portal) Logout(ctx context.Context) error {
	token, _ := p.store.Token(ctx)
	if token != "" {
		p.backend.Logout(ctx, token)
	}
	clearErr := p.store.ClearCredential(ctx)
	p.mirror.Sync(ctx)
	if err := p.sessions.SignOut(ctx); err != nil {
		p.log.Warn("gateway sign-out failed", zap.Error(err))
	}
	return clearErr
}

// Register creates an account. The caller signs in afterwards.
func (p *Portal) Register(ctx context.Context, email, name, password string) (*authdomain.Identity, error) {
	res := p.backend.CreateUser(ctx, newsapi.RegisterInput{Email: email, Name: name, Password: password})
	if !res.Success {
		return nil, errors.New(res.Message)
	}
	return res.Data, nil
}

// Resolve decides the auth state for a protected destination.
func (p *Portal) Resolve(ctx context.Context, destination string) merger.State {
	return p.merger.Run(ctx, destination)
}

// Page is a gateway page fetch: either a rendered view or a redirect.
type Page struct {
	Status   int
	Location string
	Body     json.RawMessage
}

// Open fetches a gateway page with the stored cookies.
func (p *Portal) Open(ctx context.Context, path string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.PortalURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Page{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: body}, nil
}

// History lists the user's past searches. The query endpoint is tried first,
// then the token-family one.
func (p *Portal) History(ctx context.Context) ([]authdomain.QueryHistoryEntry, error) {
	token := p.token(ctx)
	if token == "" {
		return nil, ErrNotSignedIn
	}
	res := p.backend.History(ctx, token)
	if !res.Success {
		return nil, errors.New(res.Message)
	}
	return res.Data, nil
}

func (p *Portal) token(ctx context.Context) string {
	if token, err := p.store.Token(ctx); err == nil && token != "" {
		return token
	}
	return p.sessions.State().AccessToken
}

// Search runs a topic search through the gateway.
func (p *Portal) Search(ctx context.Context, query string) (*articledomain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("Please enter a topic to search")
	}
	b, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.PortalURL+"/api/search", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := p.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return nil, errors.New(e.Error)
		}
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	var result articledomain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

// Whoami returns the persisted identity, or the session's.
func (p *Portal) Whoami(ctx context.Context) (*authdomain.Identity, error) {
	user, err := p.store.Identity(ctx)
	if err == nil && user != nil {
		return user, nil
	}
	s := p.sessions.Refresh(ctx)
	if s.Status == session.StatusAuthenticated {
		return s.User, nil
	}
	return nil, ErrNotSignedIn
}
