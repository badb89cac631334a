// Package jwt issues and validates HS256 access tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/identity"
	gojwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "onestop-itsm"

// Config holds token settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Claims are the access token claims.
type Claims struct {
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
	Groups []string    `json:"groups"`
	gojwt.RegisteredClaims
}

// Authenticator implements identity.Authenticator with signed JWTs.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{
		config: config,
		now:    time.Now,
	}
}

// GenerateToken signs an access token for the user.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (*identity.Token, error) {
	now := a.now()
	expiresAt := now.Add(a.config.AccessTokenDuration)

	claims := Claims{
		Name:   user.Name,
		Role:   user.Role,
		Groups: user.Groups,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &identity.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// ValidateToken parses and verifies an access token.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (domain.Viewer, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(_ *gojwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.Viewer{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return domain.Viewer{}, errors.New("token is not valid")
	}
	if !claims.Role.IsValid() {
		return domain.Viewer{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return domain.Viewer{
		ID:     claims.Subject,
		Name:   claims.Name,
		Role:   claims.Role,
		Groups: claims.Groups,
	}, nil
}
