package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/pashaMoroz/entitlement-server/entitlement"
)

const entitlementsTableName = "entitlements"

// SqliteStore persists entitlements in a process-local SQLite database,
// surviving restarts without an external database server.
type SqliteStore struct {
	db *sql.DB
}

func NewInSqlite(path string) (*SqliteStore, error) {
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening entitlement db")
	}
	db.SetMaxOpenConns(1)

	s := &SqliteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + entitlementsTableName + ` (
		product_id    TEXT PRIMARY KEY,
		expires_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	)`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Wrap(err, "error initializing entitlement schema")
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Get(ctx context.Context, productID string) (*entitlement.Record, error) {
	var expiresAtMs int64
	query := `SELECT expires_at_ms FROM ` + entitlementsTableName + ` WHERE product_id = ?`
	err := s.db.QueryRowContext(ctx, query, productID).Scan(&expiresAtMs)
	if err == sql.ErrNoRows {
		return nil, entitlement.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error querying entitlement")
	}

	return &entitlement.Record{
		ProductID: productID,
		ExpiresAt: time.UnixMilli(expiresAtMs).UTC(),
	}, nil
}

func (s *SqliteStore) Put(ctx context.Context, record *entitlement.Record) error {
	if len(record.ProductID) == 0 {
		return errors.New("product id is required")
	}
	if record.ExpiresAt.IsZero() {
		return errors.New("expiration timestamp is required")
	}

	query := `
	INSERT INTO ` + entitlementsTableName + ` (product_id, expires_at_ms, updated_at_ms) VALUES (?, ?, ?)
	ON CONFLICT (product_id) DO UPDATE SET expires_at_ms = excluded.expires_at_ms, updated_at_ms = excluded.updated_at_ms`
	_, err := s.db.ExecContext(ctx, query, record.ProductID, record.ExpiresAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "error upserting entitlement")
	}
	return nil
}

func (s *SqliteStore) reset() {
	_, err := s.db.Exec(`DELETE FROM ` + entitlementsTableName)
	if err != nil {
		panic(err)
	}
}
