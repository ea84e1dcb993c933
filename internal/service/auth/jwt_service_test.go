package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService("too-short")
	assert.Error(t, err)

	_, err = NewJWTService(testSecret)
	assert.NoError(t, err)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(testSecret)
	require.NoError(t, err)

	t.Run("accepts a valid token", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		token := signToken(t, testSecret, jwt.MapClaims{
			"uid": userID.String(),
			"sub": "quoting-app",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
		})

		claims, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "quoting-app", claims.Subject)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, jwt.MapClaims{
			"uid": uuid.NewString(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects a wrong signature", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, "another-secret-another-secret-32", jwt.MapClaims{
			"uid": uuid.NewString(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a malformed user ID claim", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, jwt.MapClaims{
			"uid": "not-a-uuid",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()
		_, err := svc.ValidateToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
