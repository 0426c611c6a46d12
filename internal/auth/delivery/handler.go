package delivery

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	authdto "github.com/AveryLor/BiasBreaker-sub000/internal/auth/dto"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthCallbackCookie = "oauth_callback"
	defaultLanding      = "/dashboard"
)

type HandlerConfig struct {
	SignInPath   string
	CookieMaxAge time.Duration // manual token mirror
}

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	cfg         HandlerConfig
	log         *zap.Logger
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, cfg HandlerConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		cfg:         cfg,
		log:         log.Named("auth-handler"),
	}
}

// Session reports the current portal session
// GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, authdto.SessionResponse{})
		return
	}

	session, err := h.authUsecase.ResolveSession(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, usecase.ErrNoSession) {
			h.log.Error("failed to resolve session", zap.Error(err))
		}
		clearCookie(c, SessionCookie, true)
		c.JSON(http.StatusOK, authdto.SessionResponse{})
		return
	}

	expires := session.ExpiresAt
	c.JSON(http.StatusOK, authdto.SessionResponse{
		User:        session.Identity(),
		AccessToken: session.AccessToken,
		Expires:     &expires,
	})
}

// SignIn opens a session with email and password
// POST /api/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req authdto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	result, err := h.authUsecase.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.setSessionCookie(c, result)
	c.JSON(http.StatusOK, result)
}

// SignOut destroys the session and both auth cookies
// POST /api/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		if err := h.authUsecase.SignOut(token); err != nil {
			h.log.Error("failed to destroy session", zap.Error(err))
		}
	}
	clearCookie(c, SessionCookie, true)
	clearCookie(c, ManualTokenCookie, false)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Register creates an account; the user signs in afterwards
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, name and password are required"})
		return
	}

	user, err := h.authUsecase.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, usecase.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered. Please sign in or use a different email."})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":     user,
		"redirect": h.cfg.SignInPath + "?registered=true",
	})
}

// GoogleStart redirects to the Google consent page
// GET /api/auth/google
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	state := uuid.New().String()
	authURL, err := h.authUsecase.GoogleAuthURL(state)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", false, true)
	if cb := localPath(c.Query("callbackUrl")); cb != "" {
		c.SetCookie(oauthCallbackCookie, cb, 600, "/", "", false, true)
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GoogleCallback completes the federated flow
// GET /api/auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state, _ := c.Cookie(oauthStateCookie)
	clearCookie(c, oauthStateCookie, true)
	if state == "" || state != c.Query("state") {
		c.Redirect(http.StatusTemporaryRedirect, h.cfg.SignInPath+"?error=callback")
		return
	}

	result, err := h.authUsecase.GoogleSignIn(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.log.Warn("google sign-in failed", zap.Error(err))
		c.Redirect(http.StatusTemporaryRedirect, h.cfg.SignInPath+"?error=auth")
		return
	}

	h.setSessionCookie(c, result)
	landing := defaultLanding
	if cb, _ := c.Cookie(oauthCallbackCookie); localPath(cb) != "" {
		landing = localPath(cb)
	}
	clearCookie(c, oauthCallbackCookie, true)
	c.Redirect(http.StatusTemporaryRedirect, landing)
}

// ChangePassword updates the password on the backend
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req authdto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current and new password are required"})
		return
	}

	msg, err := h.authUsecase.ChangePassword(c.Request.Context(), c.GetString(ctxToken), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteAccount removes the account and signs out
// DELETE /api/auth/delete-account
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	msg, err := h.authUsecase.DeleteAccount(c.Request.Context(), c.GetString(ctxToken), c.GetString(ctxUserID))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	clearCookie(c, SessionCookie, true)
	clearCookie(c, ManualTokenCookie, false)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// QueryHistory lists the user's past searches, optionally filtered by ?q=
// GET /api/user/queries
func (h *AuthHandler) QueryHistory(c *gin.Context) {
	queries, err := h.authUsecase.QueryHistory(c.Request.Context(), c.GetString(ctxToken))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": authdomain.FilterHistory(c.Query("q"), queries)})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, result *authdto.SignInResult) {
	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, result.SessionToken, maxAge, "/", "", false, true)
}

// localPath accepts only same-origin paths so callbacks cannot leave the site.
func localPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return u.RequestURI()
}

// CurrentIdentity returns the identity RequireAuth placed on the context.
func CurrentIdentity(c *gin.Context) *authdomain.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*authdomain.Identity)
	return id
}

// CurrentUserID is the caller's user ID, empty when anonymous.
func CurrentUserID(c *gin.Context) string {
	if id := CurrentIdentity(c); id != nil {
		return id.ID
	}
	return ""
}
