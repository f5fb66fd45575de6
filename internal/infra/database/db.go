package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver
	_ "github.com/lib/pq"              // "postgres" driver
	_ "modernc.org/sqlite"             // "sqlite" driver, pure Go
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// Dialect selects the SQL variations between the supported stores.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DialectFor maps a driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

// lockClause is appended to SELECTs that must hold row locks until commit.
// SQLite has no row locks; its single writer connection serialises transactions instead.
func (d Dialect) lockClause() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// Open creates a connection pool for driver, applies the schema and pings the database.
func Open(ctx context.Context, driver, dataSourceName string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, 0, err
	}
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open database connection: %w", err)
	}

	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, 0, err
	}
	return db, dialect, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so repositories can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
