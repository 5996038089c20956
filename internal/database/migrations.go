package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type migration struct {
	Version int
	Name    string
	MySQL   string
	SQLite  string
}

func (m migration) statements(d Dialect) []string {
	if d == DialectSQLite {
		return splitSQLStatements(m.SQLite)
	}
	return splitSQLStatements(m.MySQL)
}

// Migrate brings the schema up to date. Each migration is applied and recorded
// in its own transaction. MySQL commits DDL implicitly, so a migration that
// fails halfway there must be repaired by hand.
func (c *Connector) Migrate(ctx context.Context) error {
	log.Info().Str("dialect", string(c.dialect)).Msg("Running database migrations")

	if _, err := c.Execute(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, nil, ModeExec); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := c.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	log.Debug().Int("current_version", currentVersion).Msg("Current schema version")

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := c.Transaction(ctx, func(tx Executor) error {
			for i, stmt := range m.statements(c.dialect) {
				if _, err := tx.Execute(ctx, stmt, nil, ModeExec); err != nil {
					return fmt.Errorf("migration %d statement %d failed: %w", m.Version, i+1, err)
				}
			}
			if _, err := tx.Execute(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", []any{m.Version}, ModeExec); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	log.Info().Msg("Database migrations complete")
	return nil
}

// SchemaVersion returns the highest applied migration, 0 on a fresh database.
func (c *Connector) SchemaVersion(ctx context.Context) (int, error) {
	res, err := c.Execute(ctx, "SELECT COALESCE(MAX(version), 0) AS version FROM schema_migrations", nil, ModeFetch)
	if err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return int(res.Rows[0].Int64("version")), nil
}

// splitSQLStatements splits a script on trailing semicolons, dropping blank
// lines and "--" comments.
func splitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.SplitSeq(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}
	return statements
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		MySQL: `
			CREATE TABLE IF NOT EXISTS roles (
				role_id INT AUTO_INCREMENT PRIMARY KEY,
				role_name VARCHAR(64) NOT NULL UNIQUE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS partner_types (
				type_id INT AUTO_INCREMENT PRIMARY KEY,
				type_name VARCHAR(64) NOT NULL UNIQUE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS product_types (
				type_id INT AUTO_INCREMENT PRIMARY KEY,
				type_name VARCHAR(128) NOT NULL UNIQUE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS partners (
				partner_id INT AUTO_INCREMENT PRIMARY KEY,
				company_name VARCHAR(255) NOT NULL,
				inn VARCHAR(12) NOT NULL UNIQUE,
				director_name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				contact_phone VARCHAR(32) NOT NULL DEFAULT '',
				partner_type_id INT NOT NULL,
				CONSTRAINT fk_partners_type FOREIGN KEY (partner_type_id) REFERENCES partner_types (type_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS users (
				user_id INT AUTO_INCREMENT PRIMARY KEY,
				username VARCHAR(64) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				role_id INT NOT NULL,
				partner_id INT NULL,
				CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles (role_id),
				CONSTRAINT fk_users_partner FOREIGN KEY (partner_id) REFERENCES partners (partner_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS products (
				product_id INT AUTO_INCREMENT PRIMARY KEY,
				product_name VARCHAR(255) NOT NULL,
				product_type_id INT NOT NULL,
				min_partner_price DECIMAL(12,2) NOT NULL DEFAULT 0,
				CONSTRAINT fk_products_type FOREIGN KEY (product_type_id) REFERENCES product_types (type_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

			CREATE TABLE IF NOT EXISTS suppliers (
				supplier_id INT AUTO_INCREMENT PRIMARY KEY,
				company_name VARCHAR(255) NOT NULL,
				inn VARCHAR(12) NOT NULL,
				contact_phone VARCHAR(32) NOT NULL DEFAULT ''
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
		`,
		SQLite: `
			CREATE TABLE IF NOT EXISTS roles (
				role_id INTEGER PRIMARY KEY AUTOINCREMENT,
				role_name TEXT NOT NULL UNIQUE
			);

			CREATE TABLE IF NOT EXISTS partner_types (
				type_id INTEGER PRIMARY KEY AUTOINCREMENT,
				type_name TEXT NOT NULL UNIQUE
			);

			CREATE TABLE IF NOT EXISTS product_types (
				type_id INTEGER PRIMARY KEY AUTOINCREMENT,
				type_name TEXT NOT NULL UNIQUE
			);

			CREATE TABLE IF NOT EXISTS partners (
				partner_id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_name TEXT NOT NULL,
				inn TEXT NOT NULL UNIQUE,
				director_name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				contact_phone TEXT NOT NULL DEFAULT '',
				partner_type_id INTEGER NOT NULL REFERENCES partner_types (type_id)
			);

			CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role_id INTEGER NOT NULL REFERENCES roles (role_id),
				partner_id INTEGER REFERENCES partners (partner_id)
			);

			-- prices are kept as text so cents survive the round trip exactly
			CREATE TABLE IF NOT EXISTS products (
				product_id INTEGER PRIMARY KEY AUTOINCREMENT,
				product_name TEXT NOT NULL,
				product_type_id INTEGER NOT NULL REFERENCES product_types (type_id),
				min_partner_price TEXT NOT NULL DEFAULT '0'
			);

			CREATE TABLE IF NOT EXISTS suppliers (
				supplier_id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_name TEXT NOT NULL,
				inn TEXT NOT NULL,
				contact_phone TEXT NOT NULL DEFAULT ''
			);
		`,
	},
	{
		Version: 2,
		Name:    "lookup_indexes",
		MySQL: `
			CREATE INDEX idx_users_partner ON users (partner_id);
			CREATE INDEX idx_products_type ON products (product_type_id);
			CREATE INDEX idx_suppliers_inn ON suppliers (inn);
		`,
		SQLite: `
			CREATE INDEX IF NOT EXISTS idx_users_partner ON users (partner_id);
			CREATE INDEX IF NOT EXISTS idx_products_type ON products (product_type_id);
			CREATE INDEX IF NOT EXISTS idx_suppliers_inn ON suppliers (inn);
		`,
	},
}
