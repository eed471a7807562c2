package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Session is an issued access token.
type Session struct {
	Profile   *domain.Profile
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	profiles   repository.ProfileRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, profiles repository.ProfileRepository) *AuthService {
	return &AuthService{
		profiles:   profiles,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a customer account and signs it in. Staff roles are
// granted out of band.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = plainText(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"fields": []string{"name"}})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email is invalid", map[string]any{"fields": []string{"email"}})
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	profile := &domain.Profile{
		Name:         name,
		Email:        email,
		Role:         domain.RoleUser,
		PasswordHash: hash,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.issue(profile)
}

// EnsureAdmin creates an admin profile for email unless one exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*domain.Profile, error) {
	existing, err := s.profiles.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	profile := &domain.Profile{Name: "Administrator", Email: email, Role: domain.RoleAdmin, PasswordHash: hash}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// Login authenticates a profile of any role.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(profile.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(auth.ErrInvalidCredentials.Error())
	}
	return s.issue(profile)
}

// Profile returns the caller's own profile.
func (s *AuthService) Profile(ctx context.Context, actor domain.Actor) (*domain.Profile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	profile.PasswordHash = ""
	return profile, nil
}

// Agents lists the staff tickets can be assigned to.
func (s *AuthService) Agents(ctx context.Context, actor domain.Actor) ([]domain.Profile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	agents, err := s.profiles.ListByRole(ctx, domain.RoleAgent, domain.RoleAdmin)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range agents {
		agents[i].PasswordHash = ""
	}
	return agents, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(profile *domain.Profile) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(profile.ID, profile.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := *profile
	out.PasswordHash = ""
	return &Session{Profile: &out, Token: token, ExpiresAt: exp}, nil
}
