package newsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zap.NewNop()), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestIssueToken_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a@b.com", r.PostForm.Get("username"))
		assert.Equal(t, "secret123", r.PostForm.Get("password"))
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "token_type": "bearer"})
	})

	res := c.IssueToken(context.Background(), LoginInput{Email: "a@b.com", Password: "secret123"})

	require.True(t, res.Success)
	assert.Equal(t, "tok-1", res.Data.AccessToken)
}

func TestLoginNon2xxIsFailureWithMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"}, MsgInvalidCredentials},
		{"server error with detail", http.StatusInternalServerError, map[string]string{"detail": "Database error"}, "Database error"},
		{"server error without body", http.StatusBadGateway, nil, "Login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			res := c.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "wrong"})
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
			assert.Nil(t, c.Identity())

			tok := c.IssueToken(context.Background(), LoginInput{Email: "a@b.com", Password: "wrong"})
			assert.False(t, tok.Success)
			assert.NotEmpty(t, tok.Message)
		})
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, zap.NewNop())

	res := c.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "secret123"})
	assert.False(t, res.Success)
	assert.Equal(t, "Network error during login", res.Message)

	hist := c.QueryHistory(context.Background(), "tok")
	assert.False(t, hist.Success)
	assert.Equal(t, "Network error while fetching query history", hist.Message)
}

func TestMalformedBodies(t *testing.T) {
	var body atomic.Value
	body.Store("")
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body.Load().(string)))
	})

	for _, b := range []string{"", "{not json", `{"user": null}`, `{"user": {"email": "a@b.com", "name": "Ada"}}`} {
		body.Store(b)
		res := c.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "secret123"})
		assert.False(t, res.Success, "body %q", b)
		assert.Equal(t, MsgMalformed, res.Message, "body %q", b)
	}
}

func TestLoginAndLogoutTrackIdentity(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "backend", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 7, "name": "Ada", "email": "a@b.com", "created_at": "2024-01-01"}})
		case "/api/auth/me":
			if _, err := r.Cookie("session"); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 7, "email": "a@b.com"}})
		case "/api/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	res := c.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret123"})
	require.True(t, res.Success)
	assert.Equal(t, "7", res.Data.ID)
	assert.Equal(t, "Ada", c.Identity().Name)

	me := c.Me(ctx, "")
	require.True(t, me.Success)

	out := c.Logout(ctx, "")
	assert.True(t, out.Success)
	assert.Nil(t, c.Identity())

	me = c.Me(ctx, "")
	assert.False(t, me.Success)
	assert.Equal(t, "Not authenticated", me.Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Email already registered"})
	})

	res := c.CreateUser(context.Background(), RegisterInput{Email: "a@b.com", Name: "Ada", Password: "secret123"})
	assert.False(t, res.Success)
	assert.Equal(t, MsgEmailTaken, res.Message)

	res = c.Register(context.Background(), RegisterInput{Email: "a@b.com", Name: "Ada", Password: "secret123"})
	assert.Equal(t, MsgEmailTaken, res.Message)
}

func TestValidationHappensBeforeAnyCall(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	assert.Equal(t, MsgLoginRequired, c.Login(ctx, LoginInput{Email: "a@b.com"}).Message)
	assert.Equal(t, MsgLoginRequired, c.IssueToken(ctx, LoginInput{Password: "x"}).Message)
	assert.Equal(t, MsgRegisterRequired, c.Register(ctx, RegisterInput{Email: "a@b.com", Password: "x"}).Message)
	assert.Equal(t, MsgPasswordMismatch, c.ChangePassword(ctx, "tok", PasswordChange{
		CurrentPassword: "old", NewPassword: "longenough1", ConfirmPassword: "longenough2",
	}).Message)
	assert.Equal(t, MsgPasswordTooShort, c.ChangePassword(ctx, "tok", PasswordChange{
		CurrentPassword: "old", NewPassword: "short", ConfirmPassword: "short",
	}).Message)
	assert.Equal(t, MsgCurrentRequired, c.ChangePassword(ctx, "tok", PasswordChange{
		NewPassword: "longenough1", ConfirmPassword: "longenough1",
	}).Message)

	assert.Zero(t, calls.Load())
}

func TestChangePasswordSendsBearerAndBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"current_password": "old", "new_password": "longenough1"}, body)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
	})

	res := c.ChangePassword(context.Background(), "tok", PasswordChange{
		CurrentPassword: "old", NewPassword: "longenough1", ConfirmPassword: "longenough1",
	})
	require.True(t, res.Success)
	assert.Equal(t, "Password updated", res.Data)
}

func TestDeleteAccountLogsOut(t *testing.T) {
	var loggedOut atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "email": "a@b.com"}})
		case "/api/auth/delete-account":
			assert.Equal(t, http.MethodDelete, r.Method)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
		case "/api/auth/logout":
			loggedOut.Store(true)
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()
	require.True(t, c.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret123"}).Success)

	res := c.DeleteAccount(ctx, "")

	require.True(t, res.Success)
	assert.Equal(t, "Account deleted successfully", res.Data)
	assert.True(t, loggedOut.Load())
	assert.Nil(t, c.Identity())
}

func TestHistoryFamilies(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/queries":
			writeJSON(w, http.StatusOK, map[string]any{"queries": []map[string]any{
				{"id": 1, "user_id": 7, "query": "climate", "timestamp": "2024-05-01T10:00:00"},
			}})
		case "/search-history/":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 9, "query": "elections"}})
		}
	})
	ctx := context.Background()

	q := c.QueryHistory(ctx, "tok")
	require.True(t, q.Success)
	require.Len(t, q.Data, 1)
	assert.Equal(t, "1", q.Data[0].ID)
	assert.Equal(t, "7", q.Data[0].UserID)
	assert.Equal(t, "climate", q.Data[0].Query)

	s := c.SearchHistory(ctx, "tok")
	require.True(t, s.Success)
	require.Len(t, s.Data, 1)
	assert.Equal(t, "elections", s.Data[0].Query)

	assert.False(t, c.SearchHistory(ctx, "").Success)
}

func TestCurrentUserWithoutID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"email": "a@b.com", "name": "Ada"})
	})

	res := c.CurrentUser(context.Background(), "tok")

	assert.False(t, res.Success)
	assert.Equal(t, MsgMalformed, res.Message)
	assert.Nil(t, res.Data)
}

func TestHistoryFallsBackToSearchHistory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search-history/" {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 9, "query": "elections"}})
			return
		}
		http.NotFound(w, r)
	})

	res := c.History(context.Background(), "tok")

	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "elections", res.Data[0].Query)
}

func TestHistoryBothFamiliesDown(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res := c.History(context.Background(), "tok")

	assert.False(t, res.Success)
	assert.Equal(t, "Failed to fetch query history", res.Message)
}

func TestChat(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "climate policy", body["message"])
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"query":   "climate policy",
			"results": []map[string]any{{"id": "3", "title": "T", "content": "C", "bias_score": 42.5}},
			"neutral_article": map[string]any{
				"title":   "Neutral",
				"content": "Body",
			},
		})
	})

	res := c.Chat(context.Background(), "  climate policy ")
	require.True(t, res.Success)
	require.Len(t, res.Data.Results, 1)
	assert.Equal(t, "3", res.Data.Results[0].IDString())
	require.NotNil(t, res.Data.Results[0].BiasScore)
	assert.InDelta(t, 42.5, *res.Data.Results[0].BiasScore, 0.001)
	assert.Equal(t, "Neutral", res.Data.NeutralArticle.Title)

	assert.False(t, c.Chat(context.Background(), "   ").Success)
}
