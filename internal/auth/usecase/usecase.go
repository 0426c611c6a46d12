package usecase

import (
	"context"
	"errors"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	authdto "github.com/AveryLor/BiasBreaker-sub000/internal/auth/dto"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no session")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
	ErrGoogleUnverified   = errors.New("google email is not verified")
)

// Backend is the part of the news backend client the auth flows call.
type Backend interface {
	IssueToken(ctx context.Context, in newsapi.LoginInput) newsapi.Result[newsapi.TokenPair]
	CurrentUser(ctx context.Context, token string) newsapi.Result[*authdomain.Identity]
	CreateUser(ctx context.Context, in newsapi.RegisterInput) newsapi.Result[*authdomain.Identity]
	ChangePassword(ctx context.Context, token string, in newsapi.PasswordChange) newsapi.Result[string]
	DeleteAccount(ctx context.Context, token string) newsapi.Result[string]
	QueryHistory(ctx context.Context, token string) newsapi.Result[[]authdomain.QueryHistoryEntry]
	SearchHistory(ctx context.Context, token string) newsapi.Result[[]authdomain.QueryHistoryEntry]
}

// AuthUsecase is the server side session provider
type AuthUsecase interface {
	// SignIn exchanges credentials with the backend and opens a session
	SignIn(ctx context.Context, email, password string) (*authdto.SignInResult, error)

	// Register creates the account; it does not sign the user in
	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdomain.Identity, error)

	// GoogleAuthURL returns the consent page URL for the given state
	GoogleAuthURL(state string) (string, error)

	// GoogleSignIn completes the federated flow and opens a tokenless session
	GoogleSignIn(ctx context.Context, code string) (*authdto.SignInResult, error)

	// ResolveSession returns ErrNoSession when the cookie names no live
	// session; a failed periodic refresh also ends in ErrNoSession
	ResolveSession(ctx context.Context, sessionToken string) (*authdomain.SessionRecord, error)

	// SignOut destroys the session named by the cookie
	SignOut(sessionToken string) error

	// ValidateToken resolves a manual bearer token to its identity
	ValidateToken(ctx context.Context, token string) (*authdomain.Identity, error)

	ChangePassword(ctx context.Context, token string, req *authdto.ChangePasswordRequest) (string, error)

	// DeleteAccount removes the account and every session of the user
	DeleteAccount(ctx context.Context, token, userID string) (string, error)

	// QueryHistory tries /api/user/queries first, then /search-history/
	QueryHistory(ctx context.Context, token string) ([]authdomain.QueryHistoryEntry, error)

	// PurgeExpired drops expired session records
	PurgeExpired() (int64, error)
}
