package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/database/dbtest"
)

func TestExecute_NotConnected(t *testing.T) {
	conn := database.NewConnector(dbtest.Config(t))

	if conn.IsConnected() {
		t.Fatal("expected a new connector to be disconnected")
	}
	_, err := conn.Execute(context.Background(), "SELECT 1", nil, database.ModeFetch)
	if !errors.Is(err, database.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	err = conn.Transaction(context.Background(), func(database.Executor) error { return nil })
	if !errors.Is(err, database.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from Transaction, got %v", err)
	}
}

func TestConnect_FailureLeavesDisconnected(t *testing.T) {
	cfg := dbtest.Config(t)
	cfg.Path = filepath.Join(t.TempDir(), "missing", "dir", "erp.db")
	conn := database.NewConnector(cfg)

	err := conn.Connect(context.Background())
	if !errors.Is(err, database.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if conn.IsConnected() {
		t.Fatal("connector should stay disconnected after a failed connect")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	conn := dbtest.New(t)

	if !conn.IsConnected() {
		t.Fatal("expected connected")
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if conn.IsConnected() {
		t.Fatal("expected disconnected")
	}
}

func TestDialect(t *testing.T) {
	if got := database.NewConnector(config.Default().Database).Dialect(); got != database.DialectMySQL {
		t.Fatalf("default dialect = %q, want mysql", got)
	}
	if got := database.NewConnector(dbtest.Config(t)).Dialect(); got != database.DialectSQLite {
		t.Fatalf("sqlite dialect = %q", got)
	}
}

func TestExecute_CommitAndFetch(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	res, err := conn.Execute(ctx, "INSERT INTO product_types (type_name) VALUES (?)", []any{"Premium"}, database.ModeCommit)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if res.LastInsertID == 0 {
		t.Fatal("expected a generated id")
	}
	if res.RowsAffected != 1 {
		t.Fatalf("rows affected = %d, want 1", res.RowsAffected)
	}

	res, err = conn.Execute(ctx, "SELECT type_id AS id, type_name AS name FROM product_types WHERE type_name = ?", []any{"Premium"}, database.ModeFetch)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(res.Rows))
	}
	if got := res.Rows[0].String("name"); got != "Premium" {
		t.Fatalf("name = %q", got)
	}
	if _, ok := res.Rows[0]["name"].([]byte); ok {
		t.Fatal("text columns should be strings, not []byte")
	}
}

func TestExecute_FetchEmptyIsNotNil(t *testing.T) {
	conn := dbtest.New(t)

	res, err := conn.Execute(context.Background(), "SELECT supplier_id FROM suppliers", nil, database.ModeFetch)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %#v", res.Rows)
	}
}

func TestExecute_ConstraintViolation(t *testing.T) {
	conn := dbtest.New(t)

	_, err := conn.Execute(context.Background(), "INSERT INTO roles (role_name) VALUES (?)", []any{"Admin"}, database.ModeCommit)
	if !errors.Is(err, database.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
	if err.Error() != database.ErrConstraint.Error() {
		t.Fatalf("message should not leak driver text: %q", err.Error())
	}

	var qerr *database.QueryError
	if !errors.As(err, &qerr) || qerr.Err == nil {
		t.Fatalf("expected *QueryError carrying the driver error, got %T", err)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	conn := dbtest.New(t)

	_, err := conn.Execute(context.Background(), "SELEC nothing", nil, database.ModeFetch)
	if !errors.Is(err, database.ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if !conn.IsConnected() {
		t.Fatal("a failed query must not drop the connection")
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := conn.Transaction(ctx, func(tx database.Executor) error {
		if _, err := tx.Execute(ctx, "INSERT INTO suppliers (company_name, inn) VALUES (?, ?)", []any{"Rolled", "123"}, database.ModeCommit); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	suppliers, err := database.NewSupplierStore(conn).List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(suppliers) != 0 {
		t.Fatalf("expected rollback, found %d suppliers", len(suppliers))
	}
}

func TestTransaction_NestedJoinsOuter(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	err := conn.Transaction(ctx, func(tx database.Executor) error {
		return tx.Transaction(ctx, func(inner database.Executor) error {
			_, err := inner.Execute(ctx, "INSERT INTO suppliers (company_name, inn) VALUES (?, ?)", []any{"Inner", "1"}, database.ModeCommit)
			if err != nil {
				return err
			}
			return errors.New("fail after insert")
		})
	})
	if err == nil {
		t.Fatal("expected error")
	}

	suppliers, _ := database.NewSupplierStore(conn).List(ctx)
	if len(suppliers) != 0 {
		t.Fatal("inner work should roll back with the outer transaction")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	if err := conn.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	version, err := conn.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 2 {
		t.Fatalf("schema version = %d, want 2", version)
	}
}
