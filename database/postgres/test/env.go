package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	postgresUser     = "entitlement"
	postgresPassword = "entitlement"
	postgresDbName   = "entitlement_test"
)

// Schema applied to fresh test databases. Kept in sync with the queries in
// entitlement/postgres.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS subscription_entitlements (
	"productId" TEXT PRIMARY KEY,
	"expiresAt" TIMESTAMP WITH TIME ZONE NOT NULL,
	"updatedAt" TIMESTAMP WITH TIME ZONE NOT NULL
);
`

type TestEnv struct {
	TestPool    *dockertest.Pool
	DatabaseUrl string
}

func NewTestEnv() (*TestEnv, error) {
	testPool, err := dockertest.NewPool("")
	if err != nil {
		return nil, err
	}

	// Start a postgres container
	databaseUrl, err := StartPostgresDB(testPool)
	if err != nil {
		return nil, err
	}

	// Wait for the database to be ready
	db, err := WaitForConnection(databaseUrl)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, err
	}

	return &TestEnv{
		TestPool:    testPool,
		DatabaseUrl: databaseUrl,
	}, nil
}

func StartPostgresDB(pool *dockertest.Pool) (string, error) {
	resource, err := pool.Run("postgres", "16", []string{
		"POSTGRES_USER=" + postgresUser,
		"POSTGRES_PASSWORD=" + postgresPassword,
		"POSTGRES_DB=" + postgresDbName,
	})
	if err != nil {
		return "", err
	}

	// Containers are reaped even if the test process is killed
	_ = resource.Expire(900)

	return fmt.Sprintf(
		"postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		resource.GetPort("5432/tcp"),
		postgresDbName,
	), nil
}

func WaitForConnection(databaseUrl string) (*sql.DB, error) {
	var db *sql.DB

	deadline := time.Now().Add(60 * time.Second)
	for {
		var err error
		db, err = sql.Open("pgx", databaseUrl)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			return db, nil
		}

		if db != nil {
			_ = db.Close()
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(time.Second)
	}
}
