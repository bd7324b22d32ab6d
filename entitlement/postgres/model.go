package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pg "github.com/pashaMoroz/entitlement-server/database/postgres"
	"github.com/pashaMoroz/entitlement-server/entitlement"
)

const (
	entitlementsTableName = "subscription_entitlements"
	allEntitlementFields  = `"productId", "expiresAt", "updatedAt"`
)

type model struct {
	ProductID string    `db:"productId"`
	ExpiresAt time.Time `db:"expiresAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

func toModel(record *entitlement.Record) *model {
	return &model{
		ProductID: record.ProductID,
		ExpiresAt: record.ExpiresAt,
	}
}

func fromModel(m *model) *entitlement.Record {
	return &entitlement.Record{
		ProductID: m.ProductID,
		ExpiresAt: m.ExpiresAt,
	}
}

func (m *model) dbPut(ctx context.Context, pool *pgxpool.Pool) error {
	return pg.ExecuteInTx(ctx, pool, func(tx pgx.Tx) error {
		query := `INSERT INTO ` + entitlementsTableName + `(` + allEntitlementFields + `) VALUES ($1, $2, NOW())
			ON CONFLICT ("productId") DO UPDATE SET "expiresAt" = $2, "updatedAt" = NOW()
			RETURNING ` + allEntitlementFields
		return pgxscan.Get(
			ctx,
			tx,
			m,
			query,
			m.ProductID,
			m.ExpiresAt,
		)
	})
}

func dbGetByProductID(ctx context.Context, pool *pgxpool.Pool, productID string) (*model, error) {
	res := &model{}
	query := `SELECT ` + allEntitlementFields + ` FROM ` + entitlementsTableName + ` WHERE "productId" = $1`
	err := pgxscan.Get(
		ctx,
		pool,
		res,
		query,
		productID,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, entitlement.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}
