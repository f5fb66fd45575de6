package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"pool_maintenance_service/internal/domain/apperr"
)

const pgUniqueViolation = "23505"

// SQLite extended result codes SQLITE_CONSTRAINT_UNIQUE and SQLITE_CONSTRAINT_PRIMARYKEY.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// isUniqueViolation recognises a unique-constraint failure from any of the supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code() == sqliteConstraintUnique || coded.Code() == sqliteConstraintPrimaryKey
	}
	return false
}

// notFound converts sql.ErrNoRows into apperr.ErrNotFound with the entity name.
func notFound(err error, entity string, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, entity)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
