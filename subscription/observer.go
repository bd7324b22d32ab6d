package subscription

import (
	"context"

	"go.uber.org/zap"

	"github.com/pashaMoroz/entitlement-server/payment"
)

// Observer consumes the payment system's transaction stream, refreshes the
// entitlement cache on successful purchases and restores, publishes outcome
// events to subscribers, and finalizes every terminal transaction with the
// queue exactly once.
type Observer struct {
	log     *zap.Logger
	queue   payment.Queue
	service *Service
}

func NewObserver(log *zap.Logger, queue payment.Queue, service *Service) *Observer {
	return &Observer{
		log:     log,
		queue:   queue,
		service: service,
	}
}

// Run processes transactions until ctx is cancelled or the stream closes.
func (o *Observer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case txn, ok := <-o.queue.Transactions():
			if !ok {
				return
			}
			o.handleTransaction(ctx, txn)
		}
	}
}

func (o *Observer) handleTransaction(ctx context.Context, txn payment.Transaction) {
	log := o.log.With(
		zap.String("transaction_id", txn.ID.String()),
		zap.String("product_id", txn.ProductID),
		zap.String("state", txn.State.String()),
	)

	log.Debug("Got a transaction")

	if !txn.State.Terminal() {
		// In progress, nothing to acknowledge yet
		return
	}

	switch txn.State {
	case payment.StatePurchased:
		o.refresh(ctx, log)
		o.service.publish(TransactionEvent{
			Kind:      EventPurchaseSucceeded,
			ProductID: txn.ProductID,
		})

	case payment.StateRestored:
		o.refresh(ctx, log)
		o.service.publish(TransactionEvent{
			Kind:      EventRestoreSucceeded,
			ProductID: txn.ProductID,
		})

	case payment.StateFailed:
		kind := EventPurchaseFailed
		if txn.Origin == payment.OriginRestore {
			kind = EventRestoreFailed
		}
		log.Debug("Transaction failed", zap.Error(txn.Err))
		o.service.publish(TransactionEvent{
			Kind:      kind,
			ProductID: txn.ProductID,
			Err:       txn.Err,
		})

	case payment.StateDeferred:
		// Awaiting external approval, no outcome to report
	}

	// Every terminal transaction is finalized, regardless of outcome.
	// Failing to do so blocks the queue.
	if err := o.queue.Finish(ctx, txn); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}
}

func (o *Observer) refresh(ctx context.Context, log *zap.Logger) {
	// The store reflects the new purchase without waiting for the next
	// scheduled check. Failures are reported by RefreshStatus itself and
	// will be retried by the caller's next refresh.
	if err := o.service.RefreshStatus(ctx); err != nil {
		log.Warn("Failed to refresh entitlements after transaction", zap.Error(err))
	}
}
