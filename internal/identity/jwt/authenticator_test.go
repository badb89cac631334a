package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator(now time.Time) *Authenticator {
	a := NewAuthenticator(Config{SecretKey: testSecret, AccessTokenDuration: time.Hour})
	a.now = func() time.Time { return now }
	return a
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	// Arrange
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(now)
	user := &domain.User{ID: "USR003", Name: "Vera Vendor", Role: domain.RoleVendor, Groups: []string{"Hardware Support"}}

	// Act
	token, err := a.GenerateToken(context.Background(), user)
	require.NoError(t, err)
	viewer, err := a.ValidateToken(context.Background(), token.AccessToken)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)
	assert.Equal(t, domain.Viewer{
		ID:     "USR003",
		Name:   "Vera Vendor",
		Role:   domain.RoleVendor,
		Groups: []string{"Hardware Support"},
	}, viewer)
}

func TestAuthenticator_Rejects(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(now)
	user := &domain.User{ID: "USR001", Name: "Jane", Role: domain.RoleCustomer}

	valid, err := a.GenerateToken(context.Background(), user)
	require.NoError(t, err)

	expired := newTestAuthenticator(now.Add(-2 * time.Hour))
	old, err := expired.GenerateToken(context.Background(), user)
	require.NoError(t, err)

	other := NewAuthenticator(Config{SecretKey: "another-secret-another-secret-xx", AccessTokenDuration: time.Hour})
	other.now = a.now
	foreign, err := other.GenerateToken(context.Background(), user)
	require.NoError(t, err)

	none := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "USR001",
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", old.AccessToken},
		{"wrong key", foreign.AccessToken},
		{"alg none", unsigned},
		{"tampered", valid.AccessToken + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ValidateToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}
