package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ManualTokenCookie mirrors the client's persisted bearer token.
	ManualTokenCookie = "manual_auth_token"
	// SessionCookie holds the signed portal session.
	SessionCookie = "portal_session"
)

// gin context keys
const (
	ctxSession     = "session"
	ctxManualToken = "manualToken"
	ctxIdentity    = "identity"
	ctxToken       = "token"
	ctxUserID      = "userID"
)

// Paths the gatekeeper never inspects.
var bypassPrefixes = []string{"/api", "/_next", "/fonts", "/examples", "/favicon.ico", "/robots.txt"}

// SessionResolver is the part of the auth usecase the gatekeeper needs.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionToken string) (*authdomain.SessionRecord, error)
}

type GatekeeperConfig struct {
	ProtectedPaths []string
	SignInPath     string
	CookieMaxAge   time.Duration
}

// Gatekeeper runs before every page handler. A protected path needs a
// portal session or a mirrored manual token; otherwise the request is
// redirected to sign-in with the original URI as callbackUrl.
func Gatekeeper(resolver SessionResolver, cfg GatekeeperConfig, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("gatekeeper")
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasAnyPrefix(path, bypassPrefixes) {
			c.Next()
			return
		}

		session := resolveSession(c, resolver, log)
		manualToken, _ := c.Cookie(ManualTokenCookie)
		authenticated := session != nil || manualToken != ""

		if hasAnyPrefix(path, cfg.ProtectedPaths) && !authenticated {
			log.Debug("redirecting unauthenticated request", zap.String("path", path))
			q := url.Values{}
			q.Set("callbackUrl", c.Request.URL.RequestURI())
			c.Header("Location", cfg.SignInPath+"?"+q.Encode())
			c.Header("Cache-Control", "no-store")
			c.AbortWithStatus(http.StatusTemporaryRedirect)
			return
		}

		if manualToken != "" {
			SetManualTokenCookie(c, manualToken, cfg.CookieMaxAge)
			c.Set(ctxManualToken, manualToken)
		}
		if session != nil {
			c.Set(ctxSession, session)
		}
		c.Next()
	}
}

// resolveSession fails closed: errors and panics both mean no session.
func resolveSession(c *gin.Context, resolver SessionResolver, log *zap.Logger) (session *authdomain.SessionRecord) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("session resolver panicked", zap.Any("panic", r))
			session = nil
		}
	}()
	s, err := resolver.ResolveSession(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, usecase.ErrNoSession) {
			log.Error("error resolving session", zap.Error(err))
		}
		return nil
	}
	return s
}

// RequireAuth protects API routes. It accepts, in order, the portal session
// cookie, an Authorization bearer token, and the mirrored manual token.
func RequireAuth(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch identify(c, authUsecase) {
		case errMissing:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		case errRejected:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth identifies the caller when it can and never rejects.
func OptionalAuth(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		identify(c, authUsecase)
		c.Next()
	}
}

var (
	errMissing  = errors.New("no credentials")
	errRejected = errors.New("credentials rejected")
)

func identify(c *gin.Context, authUsecase usecase.AuthUsecase) error {
	if session := sessionFromCookie(c, authUsecase); session != nil {
		c.Set(ctxSession, session)
		c.Set(ctxToken, session.AccessToken)
		SetIdentity(c, session.Identity())
		return nil
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(ManualTokenCookie)
	}
	if token == "" {
		return errMissing
	}

	user, err := authUsecase.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return errRejected
	}

	c.Set(ctxToken, token)
	SetIdentity(c, user)
	return nil
}

// SetIdentity records the authenticated caller on the context.
func SetIdentity(c *gin.Context, user *authdomain.Identity) {
	c.Set(ctxIdentity, user)
	c.Set(ctxUserID, user.ID)
}

func sessionFromCookie(c *gin.Context, resolver SessionResolver) *authdomain.SessionRecord {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return nil
	}
	s, err := resolver.ResolveSession(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return s
}

func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// SetManualTokenCookie writes the mirror cookie: script readable, lax.
func SetManualTokenCookie(c *gin.Context, token string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ManualTokenCookie, token, int(maxAge.Seconds()), "/", "", false, false)
}

func clearCookie(c *gin.Context, name string, httpOnly bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", false, httpOnly)
}
