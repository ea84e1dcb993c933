package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// hmacJWTService validates HS256 tokens signed with the shared secret the
// quoting application uses.
type hmacJWTService struct {
	secret []byte
}

// NewJWTService creates a JWTService validating tokens against the given
// shared secret.
func NewJWTService(secret string) (JWTService, error) {
	if len(secret) < 32 {
		return nil, errors.New("JWT secret must be at least 32 bytes")
	}

	return &hmacJWTService{secret: []byte(secret)}, nil
}

// tokenClaims is the wire shape of the quoting app's tokens.
type tokenClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// ValidateToken parses and validates the token, returning its claims.
func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	var claims tokenClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user ID claim", ErrInvalidToken)
	}

	result := &Claims{
		UserID:  userID,
		Subject: claims.Subject,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}
