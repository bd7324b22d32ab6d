package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pashaMoroz/entitlement-server/entitlement"
)

type store struct {
	pool *pgxpool.Pool
}

func NewInPostgres(pool *pgxpool.Pool) entitlement.Store {
	return &store{
		pool: pool,
	}
}

func (s *store) Get(ctx context.Context, productID string) (*entitlement.Record, error) {
	model, err := dbGetByProductID(ctx, s.pool, productID)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

func (s *store) Put(ctx context.Context, record *entitlement.Record) error {
	if len(record.ProductID) == 0 {
		return errors.New("product id is required")
	}
	if record.ExpiresAt.IsZero() {
		return errors.New("expiration timestamp is required")
	}

	return toModel(record).dbPut(ctx, s.pool)
}

func (s *store) reset() {
	_, err := s.pool.Exec(context.Background(), "DELETE FROM "+entitlementsTableName)
	if err != nil {
		panic(err)
	}
}
