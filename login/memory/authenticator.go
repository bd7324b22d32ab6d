package memory

import (
	"context"
	"sync"

	"github.com/pashaMoroz/entitlement-server/login"
)

// Authenticator serves a fixed identity. For tests and local development.
type Authenticator struct {
	mu       sync.Mutex
	identity *login.Identity
	loggedIn bool
	nextErr  error
}

func NewAuthenticator(identity *login.Identity) *Authenticator {
	return &Authenticator{
		identity: identity,
	}
}

func (a *Authenticator) Login(ctx context.Context) (*login.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.nextErr != nil {
		err := a.nextErr
		a.nextErr = nil
		return nil, err
	}

	a.loggedIn = true
	cloned := *a.identity
	return &cloned, nil
}

func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loggedIn = false
	return nil
}

// FailNextLoginWith makes the next Login call fail with err.
func (a *Authenticator) FailNextLoginWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextErr = err
}

func (a *Authenticator) IsLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.loggedIn
}
