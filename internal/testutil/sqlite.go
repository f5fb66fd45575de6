// Package testutil provides fixtures shared by the store and workflow tests.
// It runs against an on-disk SQLite file so the partial unique indexes are exercised for real.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/parameter"
	"pool_maintenance_service/internal/infra/database"
)

// Now is the fixed clock used by fixtures.
var Now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// OpenSQLite opens a migrated database in t.TempDir and closes it with the test.
func OpenSQLite(t testing.TB) (*sql.DB, database.Dialect) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "pool.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, dialect, err := database.Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dialect
}

// InsertClient stores a client; poolVolume <= 0 leaves the volume unset.
func InsertClient(t testing.TB, db *sql.DB, companyID int64, name string, poolVolume float64) int64 {
	t.Helper()
	volume := sql.NullFloat64{Float64: poolVolume, Valid: poolVolume > 0}
	var id int64
	err := db.QueryRow(`INSERT INTO clients (company_id, name, pool_volume) VALUES ($1, $2, $3) RETURNING id`,
		companyID, name, volume).Scan(&id)
	require.NoError(t, err)
	return id
}

// AssignTeam assigns teamID to the client on weekday.
func AssignTeam(t testing.TB, db *sql.DB, companyID, clientID int64, weekday maintenance.Weekday, teamID int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO client_team_assignments (company_id, client_id, weekday, team_id) VALUES ($1, $2, $3, $4)`,
		companyID, clientID, weekday, teamID)
	require.NoError(t, err)
}

// InsertDefinition stores def through the catalog repository.
func InsertDefinition(t testing.TB, db *sql.DB, def *parameter.Definition) *parameter.Definition {
	t.Helper()
	if def.CreatedAt.IsZero() {
		def.CreatedAt, def.UpdatedAt = Now, Now
	}
	require.NoError(t, database.NewParameterRepository(db).Create(context.Background(), def))
	return def
}

// Float and String build valid nullable values.
func Float(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func String(v string) sql.NullString  { return sql.NullString{String: v, Valid: true} }

// PHDefinition is a complete pH recipe: 10 units of pool volume per reference.
func PHDefinition(companyID int64) *parameter.Definition {
	return &parameter.Definition{
		CompanyID:         companyID,
		Name:              "pH",
		ValueMin:          Float(7.2),
		ValueMax:          Float(7.6),
		ValueTarget:       Float(7.4),
		ProductIncrease:   String("Acid Up"),
		DosageIncrease:    Float(1.0),
		IncrementIncrease: Float(0.2),
		ProductDecrease:   String("Acid Down"),
		DosageDecrease:    Float(0.5),
		IncrementDecrease: Float(0.1),
		ReferenceVolume:   Float(10),
		Active:            true,
	}
}

// AlkalinityDefinition can only be raised; lowering it has no recipe.
func AlkalinityDefinition(companyID int64) *parameter.Definition {
	return &parameter.Definition{
		CompanyID:         companyID,
		Name:              "alkalinity",
		ValueMin:          Float(80),
		ValueMax:          Float(120),
		ValueTarget:       Float(100),
		ProductIncrease:   String("Alkalinity Plus"),
		DosageIncrease:    Float(0.1),
		IncrementIncrease: Float(10),
		ReferenceVolume:   Float(10),
		Active:            true,
	}
}
