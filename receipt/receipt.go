package receipt

import (
	"context"
	"errors"
)

var (
	// ErrNoReceipt is returned by a Source when no local receipt blob exists
	// yet, e.g. before the first purchase on a device.
	ErrNoReceipt = errors.New("no local receipt")

	// ErrReceiptUnavailable indicates a receipt could not be produced even
	// after a platform refresh.
	ErrReceiptUnavailable = errors.New("receipt unavailable")

	// ErrPlatformDenied indicates the platform rejected the receipt refresh
	// request.
	ErrPlatformDenied = errors.New("platform denied receipt refresh")
)

// Source is the platform's local receipt storage. It is a black box owned by
// the OS payment system.
type Source interface {
	// LocalReceipt returns the raw local receipt blob, or ErrNoReceipt when
	// none exists.
	LocalReceipt(ctx context.Context) ([]byte, error)

	// RefreshReceipt asks the platform to fetch a fresh receipt. On success
	// a subsequent LocalReceipt call is expected to return a blob.
	RefreshReceipt(ctx context.Context) error
}

type Acquirer interface {
	// EnsureReceipt returns the local receipt blob, requesting a platform
	// refresh at most once when no blob is available yet.
	EnsureReceipt(ctx context.Context) ([]byte, error)
}

type Verifier interface {
	// VerifyReceipt validates the receipt blob against the verification
	// endpoint and persists any still-valid entitlements it contains.
	VerifyReceipt(ctx context.Context, receipt []byte) error
}

// VerifierFunc is an adapter to allow the use of ordinary
// functions as Verifiers.
type VerifierFunc func(ctx context.Context, receipt []byte) error

// VerifyReceipt calls f(ctx, receipt).
func (f VerifierFunc) VerifyReceipt(ctx context.Context, receipt []byte) error {
	return f(ctx, receipt)
}
