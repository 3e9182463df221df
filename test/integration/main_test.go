//go:build integration

// Package integration exercises the ledger workflows against a real
// Postgres instance. Run with `go test -tags integration ./test/integration/...`
// against a database migrated with migrations/0001_init.up.sql; DATABASE_URL
// selects the connection string (defaults to the local compose instance).
package integration

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var dbPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=postgres password=postgres dbname=busledger_test sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		panic("integration: connect to database: " + err.Error())
	}
	dbPool = pool
	defer dbPool.Close()

	os.Exit(m.Run())
}

func truncateTables(t *testing.T) {
	t.Helper()
	_, err := dbPool.Exec(context.Background(), `
		TRUNCATE TABLE payments, transaction_items, transactions, route_passes,
		               tickets, trip_stops, trips, routes, transport_companies,
		               promo_rules RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
