package delivery

import (
	"net/http"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sign-in banner messages keyed by the error query code.
var signInErrors = map[string]string{
	"auth":     "Authentication failed. Please check your credentials.",
	"callback": "There was a problem with the authentication callback.",
}

const (
	signInDefaultError = "An error occurred during sign in. Please try again."
	registeredMessage  = "Registration successful! Please sign in with your new account."
)

// PageView is the payload every page route renders.
type PageView struct {
	Page        string                         `json:"page"`
	User        *authdomain.Identity           `json:"user"`
	Error       string                         `json:"error,omitempty"`
	Notice      string                         `json:"notice,omitempty"`
	CallbackURL string                         `json:"callbackUrl,omitempty"`
	History     []authdomain.QueryHistoryEntry `json:"history,omitempty"`
}

type PageHandler struct {
	authUsecase usecase.AuthUsecase
	log         *zap.Logger
}

func NewPageHandler(authUsecase usecase.AuthUsecase, log *zap.Logger) *PageHandler {
	return &PageHandler{
		authUsecase: authUsecase,
		log:         log.Named("pages"),
	}
}

// Home GET /
func (h *PageHandler) Home(c *gin.Context) {
	user, _ := h.viewer(c)
	c.JSON(http.StatusOK, PageView{Page: "home", User: user})
}

// SignIn GET /auth/signin
func (h *PageHandler) SignIn(c *gin.Context) {
	view := PageView{Page: "signin", CallbackURL: localPath(c.Query("callbackUrl"))}
	if view.CallbackURL == "" {
		view.CallbackURL = defaultLanding
	}
	if code := c.Query("error"); code != "" {
		msg, ok := signInErrors[code]
		if !ok {
			msg = signInDefaultError
		}
		view.Error = msg
	}
	if c.Query("registered") == "true" {
		view.Notice = registeredMessage
	}
	c.JSON(http.StatusOK, view)
}

// Dashboard GET /dashboard
func (h *PageHandler) Dashboard(c *gin.Context) {
	h.protected(c, "dashboard")
}

// Profile GET /profile
func (h *PageHandler) Profile(c *gin.Context) {
	h.protected(c, "profile")
}

// protected renders what the gatekeeper let through. The identity may still
// be unknown when only a mirrored token was present; the client merger
// settles that case.
func (h *PageHandler) protected(c *gin.Context, page string) {
	c.Header("Cache-Control", "no-store")
	user, token := h.viewer(c)
	view := PageView{Page: page, User: user}
	if token != "" {
		history, err := h.authUsecase.QueryHistory(c.Request.Context(), token)
		if err != nil {
			h.log.Debug("history unavailable", zap.String("page", page), zap.Error(err))
		} else {
			view.History = history
		}
	}
	c.JSON(http.StatusOK, view)
}

// viewer prefers the portal session and falls back to the mirrored token.
func (h *PageHandler) viewer(c *gin.Context) (*authdomain.Identity, string) {
	if v, ok := c.Get(ctxSession); ok {
		if s, ok := v.(*authdomain.SessionRecord); ok {
			return s.Identity(), s.AccessToken
		}
	}
	token := c.GetString(ctxManualToken)
	if token == "" {
		return nil, ""
	}
	user, err := h.authUsecase.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return nil, ""
	}
	return user, token
}
