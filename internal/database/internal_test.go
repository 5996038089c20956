package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

func TestSplitSQLStatements(t *testing.T) {
	script := `
		-- comment
		CREATE TABLE a (id INT);

		CREATE TABLE b (
			id INT
		);
		CREATE INDEX idx ON b (id)
	`
	got := splitSQLStatements(script)
	if len(got) != 3 {
		t.Fatalf("got %d statements: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id INT)" {
		t.Fatalf("first statement = %q", got[0])
	}
}

func TestClassify_MySQL(t *testing.T) {
	tests := []struct {
		number uint16
		want   error
	}{
		{1062, ErrConstraint},
		{1451, ErrConstraint},
		{1452, ErrConstraint},
		{1048, ErrConstraint},
		{1064, ErrQuery},
	}
	for _, tt := range tests {
		err := &mysql.MySQLError{Number: tt.number, Message: "x"}
		if got := classify(err); got != tt.want {
			t.Errorf("classify(%d) = %v, want %v", tt.number, got, tt.want)
		}
	}

	if got := classify(mysql.ErrInvalidConn); got != ErrNotConnected {
		t.Errorf("classify(ErrInvalidConn) = %v", got)
	}
	if got := classify(errors.New("other")); got != ErrQuery {
		t.Errorf("classify(other) = %v", got)
	}
}

func TestClassify_Sentinels(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{sql.ErrNoRows, ErrNotFound},
		{driver.ErrBadConn, ErrNotConnected},
		{fmt.Errorf("wrapped: %w", sql.ErrConnDone), ErrNotConnected},
		{context.DeadlineExceeded, ErrQuery},
		{context.Canceled, ErrQuery},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStatementKind(t *testing.T) {
	if got := statementKind("\n\t insert into x values (1)"); got != "INSERT" {
		t.Fatalf("got %q", got)
	}
	if statementKind("") != "" {
		t.Fatal("empty query should have no kind")
	}
}

func TestRowAccessors(t *testing.T) {
	row := Row{
		"id":      int64(7),
		"name":    normalizeValue([]byte("Acme")),
		"text_id": "42",
		"price":   "12.50",
		"fprice":  float64(3.5),
		"missing": nil,
	}

	if row.Int64("id") != 7 || row.Int64("text_id") != 42 {
		t.Fatal("Int64 conversion failed")
	}
	if row.String("name") != "Acme" || row.String("id") != "7" {
		t.Fatal("String conversion failed")
	}
	if row.NullInt64("missing") != nil {
		t.Fatal("NULL should map to nil")
	}
	if p := row.NullInt64("id"); p == nil || *p != 7 {
		t.Fatal("NullInt64 lost the value")
	}
	if !row.Decimal("price").Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("price = %s", row.Decimal("price"))
	}
	if !row.Decimal("fprice").Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("fprice = %s", row.Decimal("fprice"))
	}
	if !row.Decimal("missing").IsZero() {
		t.Fatal("missing decimal should be zero")
	}
}
