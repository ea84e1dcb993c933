// Package auth validates the bearer tokens the surrounding quoting
// application issues for interactive users. This service never issues
// tokens of its own.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines the token validation operations used by the API
// middleware.
type JWTService interface {
	// ValidateToken validates the provided access token string and extracts
	// the claims. Returns an error if validation fails (expired, invalid
	// signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}
