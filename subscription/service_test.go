package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pashaMoroz/entitlement-server/entitlement"
	entitlement_memory "github.com/pashaMoroz/entitlement-server/entitlement/memory"
	"github.com/pashaMoroz/entitlement-server/payment"
	payment_memory "github.com/pashaMoroz/entitlement-server/payment/memory"
	"github.com/pashaMoroz/entitlement-server/receipt"
	receipt_memory "github.com/pashaMoroz/entitlement-server/receipt/memory"
)

const testProductID = "com.example.sub.yearly"

var testReceipt = []byte("test-receipt")

type staticSource struct {
	blob []byte
}

func (s *staticSource) LocalReceipt(ctx context.Context) ([]byte, error) {
	if s.blob == nil {
		return nil, receipt.ErrNoReceipt
	}
	return s.blob, nil
}

func (s *staticSource) RefreshReceipt(ctx context.Context) error {
	return nil
}

func newTestService(t *testing.T, canMakePayments bool) (*Service, entitlement.Store, *payment_memory.Queue, *receipt_memory.Verifier) {
	store := entitlement_memory.NewInMemory()
	queue := payment_memory.NewQueue(canMakePayments)
	catalog := payment_memory.NewCatalog(&payment.Product{
		ProductID:      testProductID,
		LocalizedTitle: "Yearly Subscription",
		Price:          34.99,
		DisplayPrice:   "$34.99",
		PriceLocale:    "en_US",
	})

	verifier := receipt_memory.NewVerifier(store, testReceipt, &entitlement.Record{
		ProductID: testProductID,
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
	})
	acquirer := receipt.NewAcquirer(zaptest.NewLogger(t), &staticSource{blob: testReceipt})

	service := NewService(
		zaptest.NewLogger(t),
		store,
		acquirer,
		verifier,
		queue,
		catalog,
		testProductID,
	)
	require.NoError(t, service.LoadProducts(context.Background()))

	return service, store, queue, verifier
}

func TestService_RefreshStatus(t *testing.T) {
	ctx := context.Background()
	service, store, _, verifier := newTestService(t, true)

	active, err := service.IsSubscriptionActive(ctx, testProductID)
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, service.RefreshStatus(ctx))
	require.Equal(t, 1, verifier.VerifyCalls())

	record, err := service.CurrentEntitlement(ctx, testProductID)
	require.NoError(t, err)
	require.True(t, record.ExpiresAt.After(time.Now()))

	active, err = service.IsSubscriptionActive(ctx, testProductID)
	require.NoError(t, err)
	require.True(t, active)

	// Expired entitlements read as inactive
	require.NoError(t, store.Put(ctx, &entitlement.Record{
		ProductID: testProductID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	active, err = service.IsSubscriptionActive(ctx, testProductID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestService_RefreshStatusFailure(t *testing.T) {
	ctx := context.Background()
	service, store, _, verifier := newTestService(t, true)

	verifier.FailWith(errors.New("verification endpoint down"))

	require.Error(t, service.RefreshStatus(ctx))

	_, err := store.Get(ctx, testProductID)
	require.Equal(t, entitlement.ErrNotFound, err)

	// Failures are not retried automatically; a later call succeeds
	verifier.FailWith(nil)
	require.NoError(t, service.RefreshStatus(ctx))
	require.Equal(t, 2, verifier.VerifyCalls())
}

func TestService_ConcurrentRefreshCoalesces(t *testing.T) {
	ctx := context.Background()
	service, store, _, _ := newTestService(t, true)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int

	var mu sync.Mutex
	service.verifier = receipt.VerifierFunc(func(ctx context.Context, blob []byte) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			close(started)
			<-release
		}
		return store.Put(ctx, &entitlement.Record{
			ProductID: testProductID,
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})

	const waiters = 8

	var wg sync.WaitGroup
	results := make(chan error, waiters)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- service.RefreshStatus(ctx)
	}()
	<-started

	wg.Add(waiters - 1)
	for i := 0; i < waiters-1; i++ {
		go func() {
			defer wg.Done()
			results <- service.RefreshStatus(ctx)
		}()
	}

	// Give the joiners a moment to attach to the in-flight refresh. A
	// straggler would start a second flight and fail the call count below.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestService_PurchaseKnownProduct(t *testing.T) {
	ctx := context.Background()
	service, _, queue, _ := newTestService(t, true)

	require.NoError(t, service.Purchase(ctx, testProductID))
	require.Equal(t, []string{testProductID}, queue.Enqueued())
}

func TestService_PurchaseUnknownProductIsNoOp(t *testing.T) {
	ctx := context.Background()
	service, _, queue, _ := newTestService(t, true)

	require.NoError(t, service.Purchase(ctx, "com.example.sub.unknown"))
	require.Empty(t, queue.Enqueued())
}

func TestService_PurchaseWhenPaymentsNotPermitted(t *testing.T) {
	ctx := context.Background()
	service, _, queue, _ := newTestService(t, false)

	require.NoError(t, service.Purchase(ctx, testProductID))
	require.Empty(t, queue.Enqueued())
}

func TestService_RestorePurchases(t *testing.T) {
	ctx := context.Background()
	service, _, queue, _ := newTestService(t, true)

	require.NoError(t, service.RestorePurchases(ctx))
	require.Equal(t, 1, queue.RestoreRequests())
}

func TestService_RestoreWhenPaymentsNotPermitted(t *testing.T) {
	ctx := context.Background()
	service, _, queue, _ := newTestService(t, false)

	require.NoError(t, service.RestorePurchases(ctx))
	require.Equal(t, 0, queue.RestoreRequests())
}

func TestService_ProductLookup(t *testing.T) {
	service, _, _, _ := newTestService(t, true)

	product, ok := service.Product(testProductID)
	require.True(t, ok)
	require.Equal(t, "Yearly Subscription", product.LocalizedTitle)
	require.Equal(t, "$34.99", product.LocalizedPrice())

	_, ok = service.Product("com.example.sub.unknown")
	require.False(t, ok)
}
