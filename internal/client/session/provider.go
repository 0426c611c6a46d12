// Package session mirrors the gateway's portal session on the client as a
// three state value: loading, authenticated or unauthenticated.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	"go.uber.org/zap"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

type State struct {
	Status      Status
	User        *authdomain.Identity
	AccessToken string
	Expires     time.Time
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// SignInResult is the gateway's answer to a credentials sign-in.
type SignInResult struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	Expires     time.Time            `json:"expires"`
	User        *authdomain.Identity `json:"user"`
}

type Provider struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration
	log        *zap.Logger

	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a provider talking to the gateway at baseURL. httpClient must
// carry a cookie jar holding the portal session cookie.
func New(baseURL string, httpClient *http.Client, interval time.Duration, log *zap.Logger) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		interval:   interval,
		log:        log.Named("session"),
		state:      State{Status: StatusLoading},
		subs:       make(map[chan State]struct{}),
		done:       make(chan struct{}),
	}
}

func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe delivers the current state and then every change. Each
// subscriber only ever holds the latest state.
func (p *Provider) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	ch <- p.state
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) set(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.state.Status != s.Status || p.state.AccessToken != s.AccessToken || userID(p.state) != userID(s)
	p.state = s
	if !changed {
		return
	}
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func userID(s State) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Start polls the gateway now and then on every interval.
func (p *Provider) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		go p.loop(ctx)
	})
}

func (p *Provider) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Provider) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

type sessionResponse struct {
	User        *authdomain.Identity `json:"user"`
	AccessToken string               `json:"accessToken"`
	Expires     *time.Time           `json:"expires"`
}

// Refresh asks the gateway for the current session. Any failure degrades
// to unauthenticated.
func (p *Provider) Refresh(ctx context.Context) State {
	var body sessionResponse
	status, err := p.call(ctx, http.MethodGet, "/api/auth/session", nil, &body)
	if ctx.Err() != nil {
		return p.State()
	}
	if err != nil || status != http.StatusOK || body.User == nil {
		if err != nil {
			p.log.Debug("session poll failed", zap.Error(err))
		}
		s := State{Status: StatusUnauthenticated}
		p.set(s)
		return s
	}

	s := State{Status: StatusAuthenticated, User: body.User, AccessToken: body.AccessToken}
	if body.Expires != nil {
		s.Expires = *body.Expires
	}
	p.set(s)
	return s
}

// SignIn opens a portal session with credentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	var result SignInResult
	status, err := p.call(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case status != http.StatusOK:
		return nil, fmt.Errorf("sign in: status %d", status)
	}
	p.Refresh(ctx)
	return &result, nil
}

// SignOut ends the portal session. The local state is unauthenticated even
// when the gateway cannot be reached.
func (p *Provider) SignOut(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodPost, "/api/auth/signout", nil, nil)
	p.set(State{Status: StatusUnauthenticated})
	return err
}

func (p *Provider) call(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}
