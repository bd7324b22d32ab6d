package entitlement

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("entitlement not found")

// Record is the cached subscription entitlement for a single product.
type Record struct {
	ProductID string
	ExpiresAt time.Time
}

type Store interface {
	// Get returns the stored entitlement for a product, or ErrNotFound if
	// nothing has ever been persisted for it.
	Get(ctx context.Context, productID string) (*Record, error)

	// Put upserts the entitlement for a product. Put performs no validation;
	// callers are responsible for never persisting an already-expired date.
	Put(ctx context.Context, record *Record) error
}

func (r *Record) Clone() *Record {
	return &Record{
		ProductID: r.ProductID,
		ExpiresAt: r.ExpiresAt,
	}
}
