package receipt

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type acquirer struct {
	log    *zap.Logger
	source Source
}

func NewAcquirer(log *zap.Logger, source Source) Acquirer {
	return &acquirer{
		log:    log,
		source: source,
	}
}

func (a *acquirer) EnsureReceipt(ctx context.Context) ([]byte, error) {
	blob, err := a.source.LocalReceipt(ctx)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, ErrNoReceipt) {
		return nil, errors.Wrap(err, "error reading local receipt")
	}

	a.log.Debug("No local receipt, requesting platform refresh")

	// At most one refresh attempt; a failed refresh terminates the cycle
	// rather than retrying.
	if err := a.source.RefreshReceipt(ctx); err != nil {
		a.log.Warn("Platform receipt refresh failed", zap.Error(err))
		return nil, errors.Wrapf(ErrPlatformDenied, "refreshing receipt: %v", err)
	}

	blob, err = a.source.LocalReceipt(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrReceiptUnavailable, "reading receipt after refresh: %v", err)
	}
	return blob, nil
}
