// Package dbtest opens migrated, seeded SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
)

// Config returns a SQLite database config rooted in a fresh temp dir.
func Config(t testing.TB) config.Database {
	t.Helper()
	cfg := config.Default().Database
	cfg.Driver = config.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

// New returns a connected connector with the schema migrated and reference
// data seeded. It is disconnected when the test ends.
func New(t testing.TB) *database.Connector {
	t.Helper()
	ctx := context.Background()

	conn := database.NewConnector(Config(t))
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Disconnect() })

	if err := conn.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.NewLookupStore(conn).EnsureBaseData(ctx); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return conn
}

// PartnerTypeID returns the id of the first seeded partner type.
func PartnerTypeID(t testing.TB, exec database.Executor) int64 {
	t.Helper()
	types, err := database.NewLookupStore(exec).ListPartnerTypes(context.Background())
	if err != nil || len(types) == 0 {
		t.Fatalf("failed to load partner types: %v", err)
	}
	return types[0].ID
}
