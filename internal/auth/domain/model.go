package domain

import (
	"context"
	"errors"
)

var (
	ErrMissingToken  = errors.New("missing_token")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrTokenExpired  = errors.New("token_expired")
	ErrNotConfigured = errors.New("auth_not_configured")
)

// Identity is the caller as asserted by a verified bearer token.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
