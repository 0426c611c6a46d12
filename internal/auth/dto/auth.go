package dto

import (
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
)

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

// SignInResult carries both credentials: the portal session and the bearer
// token the client may persist for manual auth.
type SignInResult struct {
	SessionToken string               `json:"-"`
	AccessToken  string               `json:"access_token,omitempty"`
	TokenType    string               `json:"token_type,omitempty"`
	ExpiresAt    time.Time            `json:"expires"`
	User         *authdomain.Identity `json:"user"`
}

// SessionResponse is the body of GET /api/auth/session. User is null when
// there is no session.
type SessionResponse struct {
	User        *authdomain.Identity `json:"user"`
	AccessToken string               `json:"accessToken,omitempty"`
	Expires     *time.Time           `json:"expires,omitempty"`
}
