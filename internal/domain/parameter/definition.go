package parameter

import (
	"database/sql"
	"strings"
	"time"
)

// Definition is a company-scoped chemical parameter tracked on every maintenance cycle.
// Corresponds to the 'parameter_definitions' table.
type Definition struct {
	ID        int64
	CompanyID int64
	Name      string // unique per company

	ValueMin    sql.NullFloat64
	ValueMax    sql.NullFloat64
	ValueTarget sql.NullFloat64

	ProductIncrease   sql.NullString
	ProductDecrease   sql.NullString
	DosageIncrease    sql.NullFloat64
	DosageDecrease    sql.NullFloat64
	IncrementIncrease sql.NullFloat64
	IncrementDecrease sql.NullFloat64
	ReferenceVolume   sql.NullFloat64

	// Optional per-parameter anomaly threshold; overrides the default alert table.
	AlertAbove sql.NullFloat64
	AlertTopic sql.NullString

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeName folds a parameter name into the key used for threshold lookups
// ("Cyanuric Acid" and "cyanuric_acid" both become "cyanuric-acid").
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "-", "_", "-").Replace(n)
	return n
}
