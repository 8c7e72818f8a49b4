package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims models.JWTClaims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() models.JWTClaims {
	return models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceAcceptsValidToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma"})
	claims, err := svc.ValidateToken(signToken(t, "secret", validClaims(), jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma"})

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "other"

	noRole := validClaims()
	noRole.Role = ""

	cases := map[string]string{
		"wrong secret": signToken(t, "other", validClaims(), jwt.SigningMethodHS256),
		"expired":      signToken(t, "secret", expired, jwt.SigningMethodHS256),
		"wrong issuer": signToken(t, "secret", wrongIssuer, jwt.SigningMethodHS256),
		"hs512":        signToken(t, "secret", validClaims(), jwt.SigningMethodHS512),
		"no role":      signToken(t, "secret", noRole, jwt.SigningMethodHS256),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}
