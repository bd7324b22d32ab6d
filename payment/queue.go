package payment

import (
	"context"

	"github.com/google/uuid"
)

type TransactionState uint8

const (
	StateUnknown TransactionState = iota
	StatePurchasing
	StatePurchased
	StateRestored
	StateFailed
	StateDeferred
)

func (s TransactionState) String() string {
	switch s {
	case StatePurchasing:
		return "purchasing"
	case StatePurchased:
		return "purchased"
	case StateRestored:
		return "restored"
	case StateFailed:
		return "failed"
	case StateDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Terminal reports whether the payment system expects the transaction to be
// finalized. Purchasing is the only in-progress notification; everything
// else, recognized or not, must be acknowledged or the queue stalls.
func (s TransactionState) Terminal() bool {
	return s != StatePurchasing
}

type TransactionOrigin uint8

const (
	OriginPurchase TransactionOrigin = iota
	OriginRestore
)

// Transaction is a single lifecycle event emitted by the payment system.
type Transaction struct {
	ID        uuid.UUID
	ProductID string
	State     TransactionState
	Origin    TransactionOrigin

	// Err is set for StateFailed transactions.
	Err error
}

// Queue is the platform payment system boundary.
type Queue interface {
	// CanMakePayments reports whether payments are permitted for this
	// device/account.
	CanMakePayments() bool

	// EnqueuePurchase submits a purchase request for the product.
	EnqueuePurchase(ctx context.Context, productID string) error

	// RestoreCompletedTransactions asks the payment system to replay prior
	// completed transactions as StateRestored events.
	RestoreCompletedTransactions(ctx context.Context) error

	// Transactions is the stream of transaction lifecycle events.
	Transactions() <-chan Transaction

	// Finish acknowledges a terminal transaction with the payment system.
	// Finishing is idempotent; an unfinished transaction blocks the queue
	// from delivering subsequent ones.
	Finish(ctx context.Context, txn Transaction) error
}
