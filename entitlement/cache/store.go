package cache

import (
	"context"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/pashaMoroz/entitlement-server/entitlement"
)

// Cache is a read-through decorator over an entitlement store. Entitlement
// queries happen on every UI render, so hits avoid the storage round trip.
type Cache struct {
	db      entitlement.Store
	records *ttlcache.Cache
}

func NewInCache(db entitlement.Store, ttl time.Duration) entitlement.Store {
	records := ttlcache.NewCache()
	records.SetTTL(ttl)

	return &Cache{
		db:      db,
		records: records,
	}
}

func (c *Cache) Get(ctx context.Context, productID string) (*entitlement.Record, error) {
	cached, ok := c.records.Get(productID)
	if !ok {
		record, err := c.db.Get(ctx, productID)
		if err == nil {
			// Only cache positive results
			c.records.Set(productID, record.Clone())
		}
		return record, err
	}
	return cached.(*entitlement.Record).Clone(), nil
}

func (c *Cache) Put(ctx context.Context, record *entitlement.Record) error {
	err := c.db.Put(ctx, record)
	if err != nil {
		return err
	}

	c.records.Set(record.ProductID, record.Clone())
	return nil
}
