package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pashaMoroz/entitlement-server/entitlement"
	"github.com/pashaMoroz/entitlement-server/receipt"
)

var ErrInvalidReceipt = errors.New("invalid receipt")

// Verifier validates receipts against a fixed known-good blob and grants the
// configured entitlements on success. For tests and local development.
type Verifier struct {
	mu           sync.Mutex
	validReceipt []byte
	grants       []*entitlement.Record
	entitlements entitlement.Store
	calls        int
	forcedErr    error
}

func NewVerifier(entitlements entitlement.Store, validReceipt []byte, grants ...*entitlement.Record) *Verifier {
	return &Verifier{
		validReceipt: validReceipt,
		grants:       grants,
		entitlements: entitlements,
	}
}

func (v *Verifier) VerifyReceipt(ctx context.Context, receiptBlob []byte) error {
	v.mu.Lock()
	v.calls++
	forcedErr := v.forcedErr
	v.mu.Unlock()

	if forcedErr != nil {
		return forcedErr
	}
	if !bytes.Equal(receiptBlob, v.validReceipt) {
		return ErrInvalidReceipt
	}

	now := time.Now()
	for _, grant := range v.grants {
		if !grant.ExpiresAt.After(now) {
			continue
		}
		if err := v.entitlements.Put(ctx, grant.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// FailWith forces subsequent verifications to fail with err. Passing nil
// restores normal behavior.
func (v *Verifier) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.forcedErr = err
}

func (v *Verifier) VerifyCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.calls
}

var _ receipt.Verifier = (*Verifier)(nil)
