package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-enrichment/internal/auth"
	"github.com/spec-kit/ticket-enrichment/internal/config"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
	apperrors "github.com/spec-kit/ticket-enrichment/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	revoked    auth.RevocationStore
	bcryptCost int
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations auth.RevocationStore
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		revoked:    deps.Revocations,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterUser creates a new end-user account and signs them in.
func (s *AuthService) RegisterUser(ctx context.Context, name, email, password string) (*domain.User, domain.AccessToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.AccessToken{}, emailTaken()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.AccessToken{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.AccessToken{}, emailTaken()
		}
		return nil, domain.AccessToken{}, err
	}

	token, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}
	return user, token, nil
}

// LoginUser authenticates an end-user. Unknown emails and wrong passwords
// produce the same error.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*domain.User, domain.AccessToken, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.AccessToken{}, invalidCredentials()
	}
	if err != nil {
		return nil, domain.AccessToken{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.AccessToken{}, invalidCredentials()
	}
	token, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}
	return user, token, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func invalidCredentials() error {
	return apperrors.NewValidationError("invalid credentials", map[string]any{
		"email": []string{"invalid credentials"},
	}).WithKey("auth.invalid_credentials")
}

func emailTaken() error {
	return apperrors.NewValidationError("email already registered", map[string]any{
		"email": []string{"email already registered"},
	}).WithKey("auth.email_taken")
}
