package login

import (
	"context"
	"errors"
)

// ErrCancelled is returned when the user aborts the provider's login flow.
var ErrCancelled = errors.New("login cancelled")

// Identity is the authenticated user as reported by the identity provider.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

// Authenticator is the third-party identity provider boundary.
type Authenticator interface {
	// Login runs the provider's login flow and returns the authenticated
	// identity, or ErrCancelled when the user aborts.
	Login(ctx context.Context) (*Identity, error)

	// Logout clears the provider session.
	Logout(ctx context.Context) error
}
