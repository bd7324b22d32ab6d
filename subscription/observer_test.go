package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pashaMoroz/entitlement-server/event"
	"github.com/pashaMoroz/entitlement-server/payment"
)

func startObserver(t *testing.T, service *Service) (events <-chan TransactionEvent, stop func()) {
	collected := make(chan TransactionEvent, 16)
	service.AddEventHandler(event.HandlerFunc[string, TransactionEvent](func(_ string, e TransactionEvent) {
		collected <- e
	}))

	ctx, cancel := context.WithCancel(context.Background())
	observer := NewObserver(zaptest.NewLogger(t), service.queue, service)

	done := make(chan struct{})
	go func() {
		defer close(done)
		observer.Run(ctx)
	}()

	return collected, func() {
		cancel()
		<-done
	}
}

func awaitEvent(t *testing.T, events <-chan TransactionEvent) TransactionEvent {
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transaction event")
		return TransactionEvent{}
	}
}

func TestObserver_PurchaseSucceeded(t *testing.T) {
	service, _, queue, verifier := newTestService(t, true)
	events, stop := startObserver(t, service)
	defer stop()

	txn := queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StatePurchased,
	})

	e := awaitEvent(t, events)
	require.Equal(t, EventPurchaseSucceeded, e.Kind)
	require.Equal(t, testProductID, e.ProductID)
	require.NoError(t, e.Err)

	// The entitlement cache reflects the purchase without waiting for the
	// next scheduled refresh
	require.Eventually(t, func() bool {
		return verifier.VerifyCalls() == 1
	}, 5*time.Second, 10*time.Millisecond)

	active, err := service.IsSubscriptionActive(context.Background(), testProductID)
	require.NoError(t, err)
	require.True(t, active)

	require.Eventually(t, func() bool {
		return queue.FinishCount(txn.ID) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestObserver_RestoreSucceeded(t *testing.T) {
	service, _, queue, _ := newTestService(t, true)
	events, stop := startObserver(t, service)
	defer stop()

	txn := queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StateRestored,
		Origin:    payment.OriginRestore,
	})

	e := awaitEvent(t, events)
	require.Equal(t, EventRestoreSucceeded, e.Kind)
	require.Equal(t, testProductID, e.ProductID)

	require.Eventually(t, func() bool {
		return queue.FinishCount(txn.ID) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestObserver_PurchaseFailed(t *testing.T) {
	service, _, queue, _ := newTestService(t, true)
	events, stop := startObserver(t, service)
	defer stop()

	cause := errors.New("payment declined")
	txn := queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StateFailed,
		Err:       cause,
	})

	e := awaitEvent(t, events)
	require.Equal(t, EventPurchaseFailed, e.Kind)
	require.Equal(t, cause, e.Err)

	// Failed transactions are finalized too
	require.Eventually(t, func() bool {
		return queue.FinishCount(txn.ID) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestObserver_RestoreFailed(t *testing.T) {
	service, _, queue, _ := newTestService(t, true)
	events, stop := startObserver(t, service)
	defer stop()

	cause := errors.New("restore failed")
	queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StateFailed,
		Origin:    payment.OriginRestore,
		Err:       cause,
	})

	e := awaitEvent(t, events)
	require.Equal(t, EventRestoreFailed, e.Kind)
	require.Equal(t, cause, e.Err)
}

func TestObserver_PurchasingNotFinalized(t *testing.T) {
	service, _, queue, verifier := newTestService(t, true)
	events, stop := startObserver(t, service)
	defer stop()

	inProgress := queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StatePurchasing,
	})

	// A later deferred transaction proves the purchasing one was consumed
	deferred := queue.Emit(payment.Transaction{
		ProductID: testProductID,
		State:     payment.StateDeferred,
	})

	require.Eventually(t, func() bool {
		return queue.FinishCount(deferred.ID) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, 0, queue.FinishCount(inProgress.ID))
	require.Equal(t, 0, verifier.VerifyCalls())

	select {
	case e := <-events:
		t.Fatalf("unexpected event: %v", e.Kind)
	default:
	}
}
