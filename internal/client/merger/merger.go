// Package merger decides, once per protected view, whether the user is
// signed in. It reconciles the persisted token with the session provider
// and never waits longer than a fixed bound for the provider to settle.
package merger

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/session"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/store"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"

	"go.uber.org/zap"
)

type Status int

const (
	Checking Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// Where an authenticated decision came from.
const (
	SourcePersisted = "persisted"
	SourceSession   = "session"
)

type State struct {
	Status Status
	User   *authdomain.Identity
	Token  string
	Source string
	// Forced is set when the wait bound made the decision.
	Forced bool
	// History receives the user's query history at most once and is then
	// closed. Nil when no fetch was started.
	History <-chan []authdomain.QueryHistoryEntry
}

// Credentials is the persisted token and identity.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Identity(ctx context.Context) (*authdomain.Identity, error)
	ClearCredential(ctx context.Context) error
}

type CookieJar interface {
	Write(ctx context.Context, c *http.Cookie) error
}

type Sessions interface {
	Subscribe() (<-chan session.State, func())
}

type HistoryLoader interface {
	History(ctx context.Context, token string) newsapi.Result[[]authdomain.QueryHistoryEntry]
}

type Config struct {
	SignInPath string
	Timeout    time.Duration
	MirrorName string
}

type Merger struct {
	creds    Credentials
	jar      CookieJar
	sessions Sessions
	history  HistoryLoader
	redirect func(location string)
	cfg      Config
	log      *zap.Logger

	after func(time.Duration) <-chan time.Time
}

func New(creds Credentials, jar CookieJar, sessions Sessions, history HistoryLoader, redirect func(string), cfg Config, log *zap.Logger) *Merger {
	if cfg.MirrorName == "" {
		cfg.MirrorName = "manual_auth_token"
	}
	return &Merger{
		creds:    creds,
		jar:      jar,
		sessions: sessions,
		history:  history,
		redirect: redirect,
		cfg:      cfg,
		log:      log.Named("merger"),
		after:    time.After,
	}
}

// Run returns a terminal state for a view of destination. An unauthenticated
// result has already issued its single redirect. Cancelling ctx returns
// Checking without a redirect.
func (m *Merger) Run(ctx context.Context, destination string) State {
	token, user := m.persisted(ctx)
	if token != "" && user != nil {
		return m.authenticated(ctx, user, token, SourcePersisted, false)
	}

	states, cancel := m.sessions.Subscribe()
	defer cancel()
	deadline := m.after(m.cfg.Timeout)

	unauthenticated := func(forced bool) State {
		m.redirect(m.signInURL(destination))
		return State{Status: Unauthenticated, Forced: forced}
	}

	for {
		select {
		case <-ctx.Done():
			return State{Status: Checking}
		case s := <-states:
			switch s.Status {
			case session.StatusAuthenticated:
				return m.authenticated(ctx, s.User, s.AccessToken, SourceSession, false)
			case session.StatusUnauthenticated:
				if token != "" {
					m.log.Debug("session says unauthenticated, persisted token still pending")
					continue
				}
				return unauthenticated(false)
			}
		case <-deadline:
			m.log.Info("auth wait bound reached", zap.Duration("timeout", m.cfg.Timeout))
			if token != "" {
				return m.authenticated(ctx, user, token, SourcePersisted, true)
			}
			return unauthenticated(true)
		}
	}
}

// persisted reads the stored pair. A corrupt identity clears both entries
// and the mirror cookie.
func (m *Merger) persisted(ctx context.Context) (string, *authdomain.Identity) {
	token, err := m.creds.Token(ctx)
	if err != nil {
		m.log.Warn("failed to read persisted token", zap.Error(err))
		return "", nil
	}
	user, err := m.creds.Identity(ctx)
	if errors.Is(err, store.ErrCorrupt) {
		m.log.Warn("clearing corrupt persisted identity")
		if err := m.creds.ClearCredential(ctx); err != nil {
			m.log.Warn("failed to clear persisted credential", zap.Error(err))
		}
		if err := m.jar.Write(ctx, &http.Cookie{Name: m.cfg.MirrorName, Path: "/", MaxAge: -1}); err != nil {
			m.log.Warn("failed to clear token cookie", zap.Error(err))
		}
		return "", nil
	}
	if err != nil {
		m.log.Warn("failed to read persisted identity", zap.Error(err))
		return token, nil
	}
	return token, user
}

func (m *Merger) authenticated(ctx context.Context, user *authdomain.Identity, token, source string, forced bool) State {
	s := State{Status: Authenticated, User: user, Token: token, Source: source, Forced: forced}
	if token != "" && m.history != nil {
		s.History = m.fetchHistory(ctx, token)
	}
	return s
}

func (m *Merger) fetchHistory(ctx context.Context, token string) <-chan []authdomain.QueryHistoryEntry {
	out := make(chan []authdomain.QueryHistoryEntry, 1)
	go func() {
		defer close(out)
		res := m.history.History(ctx, token)
		if !res.Success {
			m.log.Debug("history fetch failed", zap.String("message", res.Message))
			return
		}
		out <- res.Data
	}()
	return out
}

func (m *Merger) signInURL(destination string) string {
	q := url.Values{}
	q.Set("callbackUrl", destination)
	return m.cfg.SignInPath + "?" + q.Encode()
}
