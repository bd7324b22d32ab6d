package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pashaMoroz/entitlement-server/payment"
)

// Queue is a scriptable in-memory payment queue. Tests enqueue purchases and
// restores through the boundary interface, then emit transaction events to
// drive the observer.
type Queue struct {
	mu              sync.Mutex
	canMakePayments bool
	txns            chan payment.Transaction
	enqueued        []string
	restoreRequests int
	finishes        map[uuid.UUID]int
}

func NewQueue(canMakePayments bool) *Queue {
	return &Queue{
		canMakePayments: canMakePayments,
		txns:            make(chan payment.Transaction, 16),
		finishes:        map[uuid.UUID]int{},
	}
}

func (q *Queue) CanMakePayments() bool {
	return q.canMakePayments
}

func (q *Queue) EnqueuePurchase(ctx context.Context, productID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enqueued = append(q.enqueued, productID)
	return nil
}

func (q *Queue) RestoreCompletedTransactions(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.restoreRequests++
	return nil
}

func (q *Queue) Transactions() <-chan payment.Transaction {
	return q.txns
}

func (q *Queue) Finish(ctx context.Context, txn payment.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.finishes[txn.ID]++
	return nil
}

// Emit delivers a transaction event to the observer, assigning an ID when
// the caller did not set one.
func (q *Queue) Emit(txn payment.Transaction) payment.Transaction {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	q.txns <- txn
	return txn
}

// Close ends the transaction stream.
func (q *Queue) Close() {
	close(q.txns)
}

func (q *Queue) Enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([]string, len(q.enqueued))
	copy(res, q.enqueued)
	return res
}

func (q *Queue) RestoreRequests() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.restoreRequests
}

func (q *Queue) FinishCount(id uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.finishes[id]
}
