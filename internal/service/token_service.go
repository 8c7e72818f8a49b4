package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// TokenConfig holds what is needed to verify access tokens issued elsewhere.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// TokenService validates HS256 bearer tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService constructs a TokenService.
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing subject or role")
	}
	return claims, nil
}
