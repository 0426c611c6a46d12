// Package mirror copies the persisted bearer token into the
// manual_auth_token cookie so the gateway can see it.
package mirror

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AveryLor/BiasBreaker-sub000/internal/client/store"

	"go.uber.org/zap"
)

const CookieName = "manual_auth_token"

// Source is the persisted token and its change feed.
type Source interface {
	Token(ctx context.Context) (string, error)
	Subscribe() (<-chan store.Change, func())
}

// CookieJar is where the mirrored cookie is written.
type CookieJar interface {
	Cookie(ctx context.Context, name string) (string, bool, error)
	Write(ctx context.Context, c *http.Cookie) error
}

type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

type Mirror struct {
	src Source
	jar CookieJar
	cfg Config
	log *zap.Logger

	passMu  sync.Mutex
	trigger chan struct{}

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(src Source, jar CookieJar, cfg Config, log *zap.Logger) *Mirror {
	return &Mirror{
		src:     src,
		jar:     jar,
		cfg:     cfg,
		log:     log.Named("mirror"),
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start runs a pass now and keeps the cookie in sync until Stop or ctx ends.
// Calling Start again is a no-op.
func (m *Mirror) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		changes, unsubscribe := m.src.Subscribe()
		go m.loop(ctx, changes, unsubscribe)
	})
}

// Stop ends the loop and waits for it.
func (m *Mirror) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// NotifyVisible asks for a pass, as when the app comes back to the foreground.
func (m *Mirror) NotifyVisible() {
	m.kick()
}

func (m *Mirror) kick() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

func (m *Mirror) loop(ctx context.Context, changes <-chan store.Change, unsubscribe func()) {
	defer close(m.done)
	defer unsubscribe()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sync(ctx)
		case c := <-changes:
			if c.Key == store.KeyToken || c.Key == store.KeyUser {
				m.kick()
			}
		case <-m.trigger:
			m.Sync(ctx)
		}
	}
}

// Sync runs one pass: a present token is written with a fresh expiry, an
// absent token clears any cookie left behind. Failures are logged only.
func (m *Mirror) Sync(ctx context.Context) {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	token, err := m.src.Token(ctx)
	if err != nil {
		m.log.Warn("failed to read persisted token", zap.Error(err))
		return
	}

	if token != "" {
		if err := m.jar.Write(ctx, m.cookie(token, int(m.cfg.MaxAge.Seconds()))); err != nil {
			m.log.Warn("failed to write token cookie", zap.Error(err))
		}
		return
	}

	_, present, err := m.jar.Cookie(ctx, CookieName)
	if err != nil {
		m.log.Warn("failed to read token cookie", zap.Error(err))
		return
	}
	if !present {
		return
	}
	if err := m.jar.Write(ctx, m.cookie("", -1)); err != nil {
		m.log.Warn("failed to clear token cookie", zap.Error(err))
		return
	}
	m.log.Debug("cleared stale token cookie")
}

func (m *Mirror) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}
}
