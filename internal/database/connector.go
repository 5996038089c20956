package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/masterfloor/erp/internal/config"
)

// Dialect identifies the SQL flavour behind a connector.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Mode selects how Execute treats a statement.
type Mode int

const (
	// ModeExec runs the statement without an explicit transaction.
	ModeExec Mode = iota
	// ModeFetch runs a query and returns every row.
	ModeFetch
	// ModeCommit runs the statement in its own committed transaction.
	ModeCommit
)

// Result is the outcome of Execute.
type Result struct {
	Rows         []Row
	LastInsertID int64
	RowsAffected int64
}

// Executor is implemented by the connector and by the handle passed into
// Transaction. Stores are built on an Executor so the same code runs inside
// and outside a transaction.
type Executor interface {
	Execute(ctx context.Context, query string, params []any, mode Mode) (*Result, error)
	// Transaction runs fn atomically. Inside a transaction it joins the outer one.
	Transaction(ctx context.Context, fn func(tx Executor) error) error
	Dialect() Dialect
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Connector owns the connection pool for one database. It is created
// explicitly and handed to the stores that need it.
type Connector struct {
	cfg     config.Database
	dialect Dialect

	mu   sync.RWMutex
	conn *sql.DB
}

// NewConnector returns a connector for cfg. No connection is opened until Connect.
func NewConnector(cfg config.Database) *Connector {
	dialect := DialectMySQL
	if cfg.Driver == config.DriverSQLite {
		dialect = DialectSQLite
	}
	return &Connector{cfg: cfg, dialect: dialect}
}

// Dialect returns the SQL flavour of the configured driver
func (c *Connector) Dialect() Dialect {
	return c.dialect
}

// Connect opens and verifies the connection pool. On failure the connector
// stays disconnected and the error is of kind ErrNotConnected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	driverName, dsn := c.dataSource()
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		log.Error().Err(err).Str("driver", driverName).Msg("Failed to open database")
		return &QueryError{Op: "connect", Kind: ErrNotConnected, Err: err}
	}

	if c.cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(c.cfg.MaxOpenConns)
	}
	if c.cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(c.cfg.MaxIdleConns)
	}
	if c.cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		log.Error().Err(err).Str("driver", driverName).Msg("Failed to connect to database")
		return &QueryError{Op: "connect", Kind: ErrNotConnected, Err: err}
	}

	c.conn = conn
	log.Debug().Str("driver", driverName).Str("database", c.target()).Msg("Database connection established")
	return nil
}

// IsConnected reports whether Connect succeeded and Disconnect has not been called.
func (c *Connector) IsConnected() bool {
	return c.pool() != nil
}

// Disconnect closes the pool. Calling it on a closed connector is a no-op.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Debug().Str("database", c.target()).Msg("Database connection closed")
	return nil
}

// Execute runs one statement. See Mode for the three behaviours. Driver
// failures roll back the statement's transaction, are logged, and come back as
// a *QueryError whose message is safe to show to a user.
func (c *Connector) Execute(ctx context.Context, query string, params []any, mode Mode) (*Result, error) {
	conn := c.pool()
	if conn == nil {
		log.Error().Str("statement", statementKind(query)).Msg("Database connection is not available")
		return nil, ErrNotConnected
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	switch mode {
	case ModeFetch:
		res, err := fetch(ctx, conn, query, params)
		if err != nil {
			return nil, failed("fetch", query, err)
		}
		return res, nil

	case ModeCommit:
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, failed("begin", query, err)
		}
		res, err := execStatement(ctx, tx, query, params)
		if err != nil {
			rollback(tx)
			return nil, failed("commit", query, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, failed("commit", query, err)
		}
		return res, nil

	default:
		res, err := execStatement(ctx, conn, query, params)
		if err != nil {
			return nil, failed("exec", query, err)
		}
		return res, nil
	}
}

// Transaction wraps fn in a database transaction. Any error from fn rolls the
// transaction back and is returned unchanged.
func (c *Connector) Transaction(ctx context.Context, fn func(tx Executor) error) error {
	conn := c.pool()
	if conn == nil {
		log.Error().Msg("Database connection is not available")
		return ErrNotConnected
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return failed("begin", "", err)
	}

	if err := fn(&txExecutor{tx: tx, dialect: c.dialect}); err != nil {
		rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return failed("commit", "", err)
	}
	return nil
}

func (c *Connector) pool() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Connector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.QueryTimeout)
}

func (c *Connector) dataSource() (driverName, dsn string) {
	if c.dialect == DialectSQLite {
		// immediate transactions take the write lock at BEGIN, so read-then-insert
		// checks inside a transaction cannot interleave
		return "sqlite", c.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	mc := mysql.NewConfig()
	mc.User = c.cfg.User
	mc.Passwd = c.cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	mc.DBName = c.cfg.Name
	mc.ParseTime = true
	// RowsAffected counts matched rows, so an update that changes nothing is not "not found"
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return "mysql", mc.FormatDSN()
}

func (c *Connector) target() string {
	if c.dialect == DialectSQLite {
		return c.cfg.Path
	}
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port)) + "/" + c.cfg.Name
}

// txExecutor is the Executor handed to Transaction callbacks.
type txExecutor struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txExecutor) Dialect() Dialect {
	return t.dialect
}

// Execute runs a statement inside the surrounding transaction. ModeCommit does
// not commit early; the outer Transaction commits or rolls back.
func (t *txExecutor) Execute(ctx context.Context, query string, params []any, mode Mode) (*Result, error) {
	if mode == ModeFetch {
		res, err := fetch(ctx, t.tx, query, params)
		if err != nil {
			return nil, failed("fetch", query, err)
		}
		return res, nil
	}

	res, err := execStatement(ctx, t.tx, query, params)
	if err != nil {
		return nil, failed("exec", query, err)
	}
	return res, nil
}

func (t *txExecutor) Transaction(_ context.Context, fn func(tx Executor) error) error {
	return fn(t)
}

func fetch(ctx context.Context, q queryer, query string, params []any) (*Result, error) {
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Rows: make([]Row, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

func execStatement(ctx context.Context, q queryer, query string, params []any) (*Result, error) {
	sqlRes, err := q.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if res.RowsAffected, err = sqlRes.RowsAffected(); err != nil {
		return nil, err
	}
	if isInsert(query) {
		if res.LastInsertID, err = sqlRes.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Error().Err(err).Msg("Failed to rollback transaction")
	}
}

func isInsert(query string) bool {
	return statementKind(query) == "INSERT"
}

// statementKind returns the leading SQL keyword, used for logs and insert detection.
func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
