package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/pashaMoroz/entitlement-server/entitlement"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*entitlement.Record
}

func NewInMemory() entitlement.Store {
	return &InMemoryStore{
		records: map[string]*entitlement.Record{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*entitlement.Record)
}

func (s *InMemoryStore) Get(ctx context.Context, productID string) (*entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[productID]
	if !ok {
		return nil, entitlement.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Put(ctx context.Context, record *entitlement.Record) error {
	if len(record.ProductID) == 0 {
		return errors.New("product id is required")
	}
	if record.ExpiresAt.IsZero() {
		return errors.New("expiration timestamp is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ProductID] = record.Clone()

	return nil
}
