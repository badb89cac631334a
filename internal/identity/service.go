// Package identity signs users in and resolves bearer tokens to viewers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/onestop-itsm/internal/admin"
	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// Portal is the console entrance a user signs in through.
type Portal string

// Portals.
const (
	PortalAgent    Portal = "agent"
	PortalCustomer Portal = "customer"
)

// Admits reports whether a user with the role may sign in through the portal.
func (p Portal) Admits(role domain.Role) bool {
	switch p {
	case PortalCustomer:
		return role == domain.RoleCustomer
	case PortalAgent:
		return role == domain.RoleAgent || role == domain.RoleAdmin || role == domain.RoleVendor
	}
	return false
}

// UserDirectory looks users up.
type UserDirectory interface {
	FindUserByLogin(ctx context.Context, login string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator issues and validates access tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, user *domain.User) (*Token, error)
	ValidateToken(ctx context.Context, token string) (domain.Viewer, error)
}

// dummyHash keeps the cost of a failed lookup close to a failed password check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("onestop-dummy-password"), bcrypt.DefaultCost)

// Service implements sign-in.
type Service struct {
	users UserDirectory
	auth  Authenticator
}

// NewService creates a new identity service.
func NewService(users UserDirectory, auth Authenticator) *Service {
	return &Service{users: users, auth: auth}
}

// LoginInput holds sign-in data.
type LoginInput struct {
	Username string
	Password string
	Portal   Portal
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *Token, error) {
	if input.Portal != PortalAgent && input.Portal != PortalCustomer {
		return nil, nil, ErrInvalidPortal
	}

	user, err := s.users.FindUserByLogin(ctx, input.Username)
	if err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(input.Password))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !input.Portal.Admits(user.Role) {
		return nil, nil, ErrWrongPortal
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate token: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user signed in", "user_id", user.ID, "role", user.Role, "portal", input.Portal)
	return user, token, nil
}

// ValidateToken resolves an access token to the viewer it was issued for.
// Role, name and groups are read from the directory, not the token, so
// demoted or deleted users lose access before their token expires.
func (s *Service) ValidateToken(ctx context.Context, token string) (domain.Viewer, error) {
	claimed, err := s.auth.ValidateToken(ctx, token)
	if err != nil {
		return domain.Viewer{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.users.GetUser(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			return domain.Viewer{}, fmt.Errorf("%w: user %s no longer exists", ErrInvalidToken, claimed.ID)
		}
		return domain.Viewer{}, fmt.Errorf("get token user: %w", err)
	}
	return domain.ViewerFromUser(user), nil
}

// GetUserByID returns the signed-in user's profile.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
