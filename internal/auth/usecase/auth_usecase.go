package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	authdto "github.com/AveryLor/BiasBreaker-sub000/internal/auth/dto"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/repository"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	sessionRepo repository.SessionRepository
	backend     Backend
	config      *config.Config
	log         *zap.Logger

	google      *oauth2.Config
	userInfoURL string

	refreshes singleflight.Group
	now       func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(sessionRepo repository.SessionRepository, backend Backend, cfg *config.Config, log *zap.Logger) AuthUsecase {
	u := &authUsecase{
		sessionRepo: sessionRepo,
		backend:     backend,
		config:      cfg,
		log:         log.Named("auth"),
		userInfoURL: googleUserInfoURL,
		now:         time.Now,
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		u.google = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return u
}

func (u *authUsecase) SignIn(ctx context.Context, email, password string) (*authdto.SignInResult, error) {
	tok := u.backend.IssueToken(ctx, newsapi.LoginInput{Email: email, Password: password})
	if !tok.Success {
		if tok.Message == newsapi.MsgInvalidCredentials {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.New(tok.Message)
	}

	user := u.backend.CurrentUser(ctx, tok.Data.AccessToken)
	if !user.Success {
		u.log.Warn("token issued but user lookup failed", zap.String("message", user.Message))
		return nil, errors.New(user.Message)
	}

	result, err := u.openSession(user.Data, tok.Data.AccessToken, authdomain.ProviderCredentials)
	if err != nil {
		return nil, err
	}
	result.TokenType = tok.Data.TokenType
	return result, nil
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdomain.Identity, error) {
	res := u.backend.CreateUser(ctx, newsapi.RegisterInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if !res.Success {
		if res.Message == newsapi.MsgEmailTaken {
			return nil, ErrEmailTaken
		}
		return nil, errors.New(res.Message)
	}
	return res.Data, nil
}

func (u *authUsecase) GoogleAuthURL(state string) (string, error) {
	if u.google == nil {
		return "", ErrGoogleDisabled
	}
	return u.google.AuthCodeURL(state), nil
}

// GoogleUserInfo is the subset of the OpenID userinfo response we use
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, code string) (*authdto.SignInResult, error) {
	if u.google == nil {
		return nil, ErrGoogleDisabled
	}

	token, err := u.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}

	resp, err := u.google.Client(ctx, token).Get(u.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch google userinfo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode google userinfo: %w", err)
	}
	if !info.EmailVerified {
		return nil, ErrGoogleUnverified
	}

	identity := &authdomain.Identity{ID: info.Sub, Name: info.Name, Email: info.Email}
	return u.openSession(identity, "", authdomain.ProviderGoogle)
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func (u *authUsecase) openSession(identity *authdomain.Identity, accessToken, provider string) (*authdto.SignInResult, error) {
	now := u.now()
	record := &authdomain.SessionRecord{
		UserID:      identity.ID,
		Name:        identity.DisplayName(),
		Email:       identity.Email,
		UserCreated: identity.CreatedAt,
		AccessToken: accessToken,
		Provider:    provider,
		ExpiresAt:   now.Add(u.config.SessionMaxAge),
		RefreshedAt: now,
	}
	if err := u.sessionRepo.Create(record); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	signed, err := u.signSession(record)
	if err != nil {
		return nil, err
	}

	u.log.Info("session opened", zap.String("user_id", record.UserID), zap.String("provider", provider))
	return &authdto.SignInResult{
		SessionToken: signed,
		AccessToken:  accessToken,
		ExpiresAt:    record.ExpiresAt,
		User:         record.Identity(),
	}, nil
}

func (u *authUsecase) signSession(record *authdomain.SessionRecord) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID,
			Subject:   record.UserID,
			IssuedAt:  jwt.NewNumericDate(u.now()),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.SessionSecret))
}

func (u *authUsecase) parseSession(sessionToken string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(sessionToken, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil || !token.Valid || claims.ID == "" {
		return "", ErrNoSession
	}
	return claims.ID, nil
}

func (u *authUsecase) ResolveSession(ctx context.Context, sessionToken string) (*authdomain.SessionRecord, error) {
	if sessionToken == "" {
		return nil, ErrNoSession
	}
	id, err := u.parseSession(sessionToken)
	if err != nil {
		return nil, err
	}

	record, err := u.sessionRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if record == nil {
		return nil, ErrNoSession
	}

	now := u.now()
	if record.Expired(now) {
		u.destroy(record.ID, "expired")
		return nil, ErrNoSession
	}
	if now.Sub(record.RefreshedAt) < u.config.SessionRefreshInterval {
		return record, nil
	}

	// Concurrent requests on one stale session share a single backend call.
	v, err, _ := u.refreshes.Do(record.ID, func() (interface{}, error) {
		return u.refresh(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return v.(*authdomain.SessionRecord), nil
}

func (u *authUsecase) refresh(ctx context.Context, record *authdomain.SessionRecord) (*authdomain.SessionRecord, error) {
	if record.AccessToken != "" {
		res := u.backend.CurrentUser(ctx, record.AccessToken)
		if !res.Success {
			u.log.Info("session refresh failed", zap.String("user_id", record.UserID), zap.String("message", res.Message))
			u.destroy(record.ID, "refresh failed")
			return nil, ErrNoSession
		}
		record.Name = res.Data.DisplayName()
		record.Email = res.Data.Email
		record.UserCreated = res.Data.CreatedAt
	}
	record.RefreshedAt = u.now()
	if err := u.sessionRepo.Update(record); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return record, nil
}

func (u *authUsecase) destroy(id, reason string) {
	if err := u.sessionRepo.Delete(id); err != nil {
		u.log.Error("failed to delete session", zap.String("session_id", id), zap.Error(err))
		return
	}
	u.log.Debug("session destroyed", zap.String("session_id", id), zap.String("reason", reason))
}

func (u *authUsecase) SignOut(sessionToken string) error {
	id, err := u.parseSession(sessionToken)
	if err != nil {
		// Nothing to destroy; signing out is still a success for the caller.
		return nil
	}
	return u.sessionRepo.Delete(id)
}

func (u *authUsecase) ValidateToken(ctx context.Context, token string) (*authdomain.Identity, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	res := u.backend.CurrentUser(ctx, token)
	if !res.Success {
		return nil, ErrNoSession
	}
	return res.Data, nil
}

func (u *authUsecase) ChangePassword(ctx context.Context, token string, req *authdto.ChangePasswordRequest) (string, error) {
	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.NewPassword
	}
	res := u.backend.ChangePassword(ctx, token, newsapi.PasswordChange{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: confirm,
	})
	if !res.Success {
		return "", errors.New(res.Message)
	}
	return res.Data, nil
}

func (u *authUsecase) DeleteAccount(ctx context.Context, token, userID string) (string, error) {
	res := u.backend.DeleteAccount(ctx, token)
	if !res.Success {
		return "", errors.New(res.Message)
	}
	if userID != "" {
		if err := u.sessionRepo.DeleteByUser(userID); err != nil {
			u.log.Error("failed to drop sessions after account deletion", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return res.Data, nil
}

func (u *authUsecase) QueryHistory(ctx context.Context, token string) ([]authdomain.QueryHistoryEntry, error) {
	res := u.backend.QueryHistory(ctx, token)
	if res.Success {
		return res.Data, nil
	}
	u.log.Debug("query history unavailable, trying search history", zap.String("message", res.Message))

	fallback := u.backend.SearchHistory(ctx, token)
	if !fallback.Success {
		return nil, errors.New(res.Message)
	}
	return fallback.Data, nil
}

func (u *authUsecase) PurgeExpired() (int64, error) {
	return u.sessionRepo.DeleteExpired(u.now())
}
