package newsapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	"go.uber.org/zap"
)

const minPasswordLength = 8

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgEmailTaken         = "Email already registered. Please sign in or use a different email."
	MsgMalformed          = "Unexpected response from server. Please try again."
	MsgLoginRequired      = "Email and password are required"
	MsgRegisterRequired   = "Email, name and password are required"
	MsgCurrentRequired    = "Current password is required"
	MsgPasswordMismatch   = "New passwords do not match"
	MsgPasswordTooShort   = "New password must be at least 8 characters long"
	MsgNotAuthenticated   = "Not authenticated"
)

func networkError(op string) string {
	return "Network error during " + op
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) validate() string {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return MsgLoginRequired
	}
	return ""
}

type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (in RegisterInput) validate() string {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return MsgRegisterRequired
	}
	return ""
}

// PasswordChange carries both new-password entries so they can be compared
// before anything is sent.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"-"`
}

func (in PasswordChange) validate() string {
	switch {
	case in.CurrentPassword == "":
		return MsgCurrentRequired
	case in.NewPassword != in.ConfirmPassword:
		return MsgPasswordMismatch
	case len(in.NewPassword) < minPasswordLength:
		return MsgPasswordTooShort
	}
	return ""
}

type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// IssueToken exchanges credentials for a bearer token (POST /token).
func (c *Client) IssueToken(ctx context.Context, in LoginInput) Result[TokenPair] {
	if msg := in.validate(); msg != "" {
		return fail[TokenPair](msg)
	}

	form := url.Values{}
	form.Set("username", in.Email)
	form.Set("password", in.Password)

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		c.log.Error("token request failed", zap.Error(err))
		return fail[TokenPair](networkError("login"))
	}
	if !resp.ok() {
		c.log.Info("token request rejected", zap.Int("status", resp.status))
		return loginFailure[TokenPair](resp)
	}

	var pair TokenPair
	if !c.decode("token", resp, &pair) || pair.AccessToken == "" {
		return fail[TokenPair](MsgMalformed)
	}
	return ok(pair)
}

// CurrentUser resolves a bearer token to its identity (GET /users/me).
func (c *Client) CurrentUser(ctx context.Context, token string) Result[*authdomain.Identity] {
	if token == "" {
		return fail[*authdomain.Identity](MsgNotAuthenticated)
	}
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", token: token})
	if err != nil {
		c.log.Error("users/me request failed", zap.Error(err))
		return fail[*authdomain.Identity](networkError("user lookup"))
	}
	if !resp.ok() {
		return failure[*authdomain.Identity](resp, "Failed to fetch user")
	}

	var u wireUser
	if !c.decode("users/me", resp, &u) || u.identity() == nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	return ok(u.identity())
}

// CreateUser registers through the token family (POST /users/).
func (c *Client) CreateUser(ctx context.Context, in RegisterInput) Result[*authdomain.Identity] {
	if msg := in.validate(); msg != "" {
		return fail[*authdomain.Identity](msg)
	}
	req, err := jsonRequest(http.MethodPost, "/users/", "", in)
	if err != nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		c.log.Error("create user request failed", zap.Error(err))
		return fail[*authdomain.Identity](networkError("registration"))
	}
	if !resp.ok() {
		return registerFailure[*authdomain.Identity](resp)
	}

	var u wireUser
	if !c.decode("users", resp, &u) || u.identity() == nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	return ok(u.identity())
}

type userEnvelope struct {
	User *wireUser `json:"user"`
}

// Register creates an account through the session family
// (POST /api/auth/register). Success makes the new user current.
func (c *Client) Register(ctx context.Context, in RegisterInput) Result[*authdomain.Identity] {
	if msg := in.validate(); msg != "" {
		return fail[*authdomain.Identity](msg)
	}
	req, err := jsonRequest(http.MethodPost, "/api/auth/register", "", in)
	if err != nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		c.log.Error("register request failed", zap.Error(err))
		return fail[*authdomain.Identity](networkError("registration"))
	}
	if !resp.ok() {
		return registerFailure[*authdomain.Identity](resp)
	}

	var env userEnvelope
	if !c.decode("register", resp, &env) || env.User.identity() == nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	id := env.User.identity()
	c.setIdentity(id)
	return ok(id)
}

// Login signs in through the session family (POST /api/auth/login).
func (c *Client) Login(ctx context.Context, in LoginInput) Result[*authdomain.Identity] {
	if msg := in.validate(); msg != "" {
		return fail[*authdomain.Identity](msg)
	}
	req, err := jsonRequest(http.MethodPost, "/api/auth/login", "", in)
	if err != nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		c.log.Error("login request failed", zap.Error(err))
		return fail[*authdomain.Identity](networkError("login"))
	}
	if !resp.ok() {
		c.log.Info("login rejected", zap.Int("status", resp.status))
		return loginFailure[*authdomain.Identity](resp)
	}

	var env userEnvelope
	if !c.decode("login", resp, &env) || env.User.identity() == nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	id := env.User.identity()
	c.setIdentity(id)
	return ok(id)
}

// Logout ends the backend session. The local identity and backend cookie
// are dropped even when the call fails.
func (c *Client) Logout(ctx context.Context, token string) Result[struct{}] {
	defer func() {
		c.setIdentity(nil)
		c.jar.Reset()
	}()

	resp, err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout", token: token})
	if err != nil {
		c.log.Error("logout request failed", zap.Error(err))
		return fail[struct{}](networkError("logout"))
	}
	if !resp.ok() {
		return failure[struct{}](resp, "Logout failed")
	}
	return ok(struct{}{})
}

// Me returns the user behind the backend session (GET /api/auth/me).
func (c *Client) Me(ctx context.Context, token string) Result[*authdomain.Identity] {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	if err != nil {
		c.log.Error("me request failed", zap.Error(err))
		return fail[*authdomain.Identity](networkError("user lookup"))
	}
	if !resp.ok() {
		return failure[*authdomain.Identity](resp, MsgNotAuthenticated)
	}

	var env userEnvelope
	if !c.decode("me", resp, &env) || env.User.identity() == nil {
		return fail[*authdomain.Identity](MsgMalformed)
	}
	return ok(env.User.identity())
}

type messageEnvelope struct {
	Message string `json:"message"`
}

// ChangePassword validates the form locally before calling
// POST /api/auth/change-password.
func (c *Client) ChangePassword(ctx context.Context, token string, in PasswordChange) Result[string] {
	if msg := in.validate(); msg != "" {
		return fail[string](msg)
	}
	req, err := jsonRequest(http.MethodPost, "/api/auth/change-password", token, in)
	if err != nil {
		return fail[string](MsgMalformed)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		c.log.Error("change password request failed", zap.Error(err))
		return fail[string](networkError("password change"))
	}
	if !resp.ok() {
		return failure[string](resp, "Password change failed")
	}

	var env messageEnvelope
	if !c.decode("change-password", resp, &env) {
		return fail[string](MsgMalformed)
	}
	if env.Message == "" {
		env.Message = "Password updated successfully"
	}
	return ok(env.Message)
}

// DeleteAccount removes the account (DELETE /api/auth/delete-account) and
// logs out on success.
func (c *Client) DeleteAccount(ctx context.Context, token string) Result[string] {
	resp, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/auth/delete-account", token: token})
	if err != nil {
		c.log.Error("delete account request failed", zap.Error(err))
		return fail[string](networkError("account deletion"))
	}
	if !resp.ok() {
		return failure[string](resp, "Account deletion failed")
	}

	var env messageEnvelope
	if !c.decode("delete-account", resp, &env) {
		return fail[string](MsgMalformed)
	}
	if out := c.Logout(ctx, token); !out.Success {
		c.log.Warn("logout after account deletion failed", zap.String("message", out.Message))
	}
	if env.Message == "" {
		env.Message = "Account deleted"
	}
	return ok(env.Message)
}

func loginFailure[T any](resp response) Result[T] {
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return fail[T](MsgInvalidCredentials)
	}
	return failure[T](resp, "Login failed")
}

func registerFailure[T any](resp response) Result[T] {
	d := detail(resp.body)
	if strings.Contains(strings.ToLower(d), "already registered") {
		return fail[T](MsgEmailTaken)
	}
	if d != "" {
		return fail[T](d)
	}
	return fail[T]("Registration failed. Please try again.")
}
