package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	articleUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/article/usecase"
	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	authRepo "github.com/AveryLor/BiasBreaker-sub000/internal/auth/repository"
	authUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/merger"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/portal"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/store"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/database"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	*httptest.Server
	meCalls atomic.Int32
	meFails atomic.Bool
	meNoID  atomic.Bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "a@b.com" || r.PostForm.Get("password") != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "token_type": "bearer"})
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		b.meCalls.Add(1)
		if b.meFails.Load() || r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		if b.meNoID.Load() {
			writeJSON(w, http.StatusOK, map[string]any{"name": "Ada", "email": "a@b.com"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Ada", "email": "a@b.com", "created_at": "2026-01-01T00:00:00"})
	})
	mux.HandleFunc("/api/user/queries", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queries": []map[string]any{{"id": 3, "user_id": 1, "query": "climate", "timestamp": "2026-01-02T00:00:00"}}})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "success",
			"query":    "energy",
			"keywords": []string{"energy"},
			"results": []map[string]any{
				{"id": 9, "title": "Grid", "content": "Power grids are changing.", "source_link": "https://www.example.com/grid", "bias_score": 50},
			},
		})
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type stack struct {
	backend *fakeBackend
	gateway *httptest.Server
	cfg     *config.Config
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := newFakeBackend(t)

	db, err := database.OpenDSN("sqlite:file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&authdomain.SessionRecord{}))

	cfg := &config.Config{
		NewsAPIURL:             backend.URL,
		NewsAPITimeout:         5 * time.Second,
		SessionSecret:          "test-secret",
		SessionMaxAge:          30 * 24 * time.Hour,
		SessionRefreshInterval: 5 * time.Minute,
		MirrorInterval:         time.Minute,
		MirrorMaxAge:           30 * 24 * time.Hour,
		AuthWaitTimeout:        2 * time.Second,
		ProtectedPaths:         []string{"/dashboard", "/profile"},
		SignInPath:             "/auth/signin",
	}

	client := newsapi.NewClient(backend.URL, cfg.NewsAPITimeout, zap.NewNop())
	authUc := authUsecase.NewAuthUsecase(authRepo.NewSessionRepository(db), client, cfg, zap.NewNop())
	handler := NewHandler(authUc, articleUsecase.NewArticleUsecase(client), cfg, zap.NewNop())

	gateway := httptest.NewServer(handler.Router())
	t.Cleanup(gateway.Close)
	cfg.PortalURL = gateway.URL
	return &stack{backend: backend, gateway: gateway, cfg: cfg}
}

func (s *stack) portal(t *testing.T) (*portal.Portal, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	p, err := portal.New(s.cfg, st, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, st
}

func TestHealth(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.gateway.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestLoginThenDashboardAllowed(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)

	user, err := p.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	token, err := st.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	stored, err := st.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.ID)

	page, err := p.Open(ctx, "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, string(page.Body), `"query":"climate"`)

	state := p.Resolve(ctx, "/dashboard")
	assert.Equal(t, merger.Authenticated, state.Status)
	assert.Empty(t, p.Redirects())
}

func TestManualTokenAloneOpensDashboard(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)
	require.NoError(t, st.SaveCredential(ctx, "tok-1", &authdomain.Identity{ID: "1", Name: "Ada"}))

	p.Start(ctx)

	require.Eventually(t, func() bool {
		page, err := p.Open(ctx, "/dashboard")
		return err == nil && page.Status == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExpiredCookieRedirectsWithCallback(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)
	// the persisted token outlived the mirror cookie, which is gone
	require.NoError(t, st.Set(ctx, store.KeyToken, "tok-old"))

	page, err := p.Open(ctx, "/dashboard")
	require.NoError(t, err)

	assert.Equal(t, http.StatusTemporaryRedirect, page.Status)
	assert.Equal(t, "/auth/signin?callbackUrl=%2Fdashboard", page.Location)
	assert.Empty(t, page.Body)
}

func TestSignedOutUserIsRedirectedOnce(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, _ := s.portal(t)
	p.Start(ctx)

	state := p.Resolve(ctx, "/profile")

	assert.Equal(t, merger.Unauthenticated, state.Status)
	assert.Equal(t, []string{"/auth/signin?callbackUrl=%2Fprofile"}, p.Redirects())
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)
	_, err := p.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, p.Logout(ctx))

	token, err := st.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	page, err := p.Open(ctx, "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, page.Status)
}

func TestLoginFallsBackToSessionSignIn(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, _ := s.portal(t)
	s.backend.meFails.Store(true)

	_, err := p.Login(ctx, "a@b.com", "secret123")

	require.Error(t, err)
	assert.GreaterOrEqual(t, s.backend.meCalls.Load(), int32(2))
}

func TestLoginWithIdentityMissingIDIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)
	s.backend.meNoID.Store(true)

	_, err := p.Login(ctx, "a@b.com", "secret123")

	require.Error(t, err)
	token, err := st.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	s.backend.meNoID.Store(false)
	_, err = p.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)
	state := p.Resolve(ctx, "/dashboard")
	assert.Equal(t, merger.Authenticated, state.Status)
	assert.Empty(t, p.Redirects())
}

func TestInvalidLogin(t *testing.T) {
	s := newStack(t)
	p, st := s.portal(t)

	_, err := p.Login(context.Background(), "a@b.com", "wrong")

	require.Error(t, err)
	assert.Equal(t, newsapi.MsgInvalidCredentials, err.Error())
	token, _ := st.Token(context.Background())
	assert.Empty(t, token)
}

func TestFreshSessionSkipsBackend(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, st := s.portal(t)
	_, err := p.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, st.ClearCredential(ctx))

	// fresh sessions are served without a backend round trip
	s.backend.meFails.Store(true)
	who, err := p.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", who.Name)
}

func TestSearchThroughGateway(t *testing.T) {
	s := newStack(t)
	p, _ := s.portal(t)

	result, err := p.Search(context.Background(), "energy")

	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "example.com", result.Articles[0].Source)
	assert.Equal(t, "Centrist or Objective", string(result.Articles[0].Perspective))
}

func TestHistoryNeedsSignIn(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p, _ := s.portal(t)

	_, err := p.History(ctx)
	assert.ErrorIs(t, err, portal.ErrNotSignedIn)

	_, err = p.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)
	history, err := p.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "climate", history[0].Query)
}

func TestUnknownProtectedPathRedirects(t *testing.T) {
	s := newStack(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(s.gateway.URL + "/dashboard/reports?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Header.Get("Location"), "callbackUrl=%2Fdashboard%2Freports%3Fx%3D1"))
}
