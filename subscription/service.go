package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pashaMoroz/entitlement-server/entitlement"
	"github.com/pashaMoroz/entitlement-server/event"
	"github.com/pashaMoroz/entitlement-server/payment"
	"github.com/pashaMoroz/entitlement-server/receipt"
)

const refreshFlightKey = "refresh-status"

// Service orchestrates receipt acquisition, verification and entitlement
// queries, and submits purchase/restore requests to the payment system.
type Service struct {
	log *zap.Logger

	entitlements entitlement.Store
	acquirer     receipt.Acquirer
	verifier     receipt.Verifier
	queue        payment.Queue
	catalog      payment.Catalog

	events *event.Bus[string, TransactionEvent]

	// Overlapping refresh calls join a single in-flight verification and
	// all observe its result.
	refreshGroup singleflight.Group

	productIDs []string

	productsMu sync.RWMutex
	products   map[string]*payment.Product
}

func NewService(
	log *zap.Logger,
	entitlements entitlement.Store,
	acquirer receipt.Acquirer,
	verifier receipt.Verifier,
	queue payment.Queue,
	catalog payment.Catalog,
	productIDs ...string,
) *Service {
	return &Service{
		log:          log,
		entitlements: entitlements,
		acquirer:     acquirer,
		verifier:     verifier,
		queue:        queue,
		catalog:      catalog,
		events:       event.NewBus[string, TransactionEvent](),
		productIDs:   productIDs,
		products:     map[string]*payment.Product{},
	}
}

// AddEventHandler subscribes a handler to transaction outcome events.
func (s *Service) AddEventHandler(h event.Handler[string, TransactionEvent]) {
	s.events.AddHandler(h)
}

func (s *Service) publish(e TransactionEvent) {
	s.events.OnEvent(e.ProductID, e)
}

// RefreshStatus acquires the local receipt, verifies it against the
// verification endpoint and updates the entitlement store. It returns
// exactly once per call. Concurrent calls are coalesced into one round trip
// whose result every caller receives; the flight runs on the context of the
// caller that started it.
func (s *Service) RefreshStatus(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do(refreshFlightKey, func() (interface{}, error) {
		s.log.Debug("Refreshing subscription status")

		blob, err := s.acquirer.EnsureReceipt(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "error acquiring receipt")
		}

		if err := s.verifier.VerifyReceipt(ctx, blob); err != nil {
			return nil, errors.Wrap(err, "error verifying receipt")
		}

		return nil, nil
	})
	if err != nil {
		s.log.Warn("Failed to refresh subscription status", zap.Error(err))
	}
	return err
}

// LoadProducts queries the catalog for the configured product identifiers.
// Intended to be called once at startup.
func (s *Service) LoadProducts(ctx context.Context) error {
	products, err := s.catalog.Products(ctx, s.productIDs...)
	if err != nil {
		return errors.Wrap(err, "error querying product catalog")
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	for _, product := range products {
		s.log.Debug("Loaded product",
			zap.String("product_id", product.ProductID),
			zap.String("title", product.LocalizedTitle),
			zap.String("price", product.LocalizedPrice()),
		)
		s.products[product.ProductID] = product
	}
	return nil
}

// Product returns the loaded catalog entry for a product identifier.
func (s *Service) Product(productID string) (*payment.Product, bool) {
	s.productsMu.RLock()
	defer s.productsMu.RUnlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, false
	}
	cloned := *product
	return &cloned, true
}

// Purchase enqueues a payment request for the product. Products missing from
// the loaded catalog are ignored, as are purchases when payments are not
// permitted on this device/account.
func (s *Service) Purchase(ctx context.Context, productID string) error {
	product, ok := s.Product(productID)
	if !ok {
		s.log.Warn("Ignoring purchase of unknown product", zap.String("product_id", productID))
		return nil
	}

	if !s.queue.CanMakePayments() {
		s.log.Warn("Payments are not permitted, ignoring purchase", zap.String("product_id", productID))
		return nil
	}

	return s.queue.EnqueuePurchase(ctx, product.ProductID)
}

// RestorePurchases asks the payment system to replay prior completed
// transactions.
func (s *Service) RestorePurchases(ctx context.Context) error {
	if !s.queue.CanMakePayments() {
		s.log.Warn("Payments are not permitted, ignoring restore")
		return nil
	}

	return s.queue.RestoreCompletedTransactions(ctx)
}

// CurrentEntitlement returns the cached entitlement for a product, or
// entitlement.ErrNotFound when the product was never verified.
func (s *Service) CurrentEntitlement(ctx context.Context, productID string) (*entitlement.Record, error) {
	return s.entitlements.Get(ctx, productID)
}

// IsSubscriptionActive reports whether the cached entitlement for a product
// expires in the future. Absent and expired entitlements both read as
// inactive.
func (s *Service) IsSubscriptionActive(ctx context.Context, productID string) (bool, error) {
	record, err := s.entitlements.Get(ctx, productID)
	if err == entitlement.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return record.ExpiresAt.After(time.Now()), nil
}
