// internal/domain/maintenance/shared_types.go
package maintenance

import (
	"strings"
	"time"

	"pool_maintenance_service/internal/domain/apperr"
)

// RecordStatus is the lifecycle state of a maintenance record.
type RecordStatus string

const (
	RecordPending      RecordStatus = "pending"
	RecordConcluded    RecordStatus = "concluded"
	RecordNotConcluded RecordStatus = "not_concluded"
)

// IsTerminal reports whether no further transition is allowed.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordConcluded || s == RecordNotConcluded
}

// InstanceStatus is the outcome of a parameter within a cycle.
type InstanceStatus string

const (
	StatusPending       InstanceStatus = "pending"
	StatusApplied       InstanceStatus = "applied"
	StatusOutOfStock    InstanceStatus = "out_of_stock"
	StatusNotAdjustable InstanceStatus = "not_adjustable"
	StatusNotNecessary  InstanceStatus = "not_necessary"
)

// ParseInstanceStatus validates a status coming from a request payload.
func ParseInstanceStatus(s string) (InstanceStatus, error) {
	switch st := InstanceStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApplied, StatusOutOfStock, StatusNotAdjustable, StatusNotNecessary:
		return st, nil
	}
	return "", apperr.Validationf("unknown parameter status %q", s)
}

// LocksMeasurement reports whether a new measurement must be rejected.
// not_necessary is deliberately absent: re-measuring it is allowed and reopens the instance.
func (s InstanceStatus) LocksMeasurement() bool {
	return s == StatusApplied || s == StatusOutOfStock || s == StatusNotAdjustable
}

// Actor identifies who changed an instance status.
type Actor string

const (
	ActorTechnician Actor = "technician"
	// ActorAdmin is the administration-assistance path; it may only set not_adjustable.
	ActorAdmin Actor = "admin"
)

// Weekday names the day a team visits a client.
type Weekday string

var weekdays = map[string]Weekday{
	"sunday":    "sunday",
	"monday":    "monday",
	"tuesday":   "tuesday",
	"wednesday": "wednesday",
	"thursday":  "thursday",
	"friday":    "friday",
	"saturday":  "saturday",
}

// ParseWeekday accepts an English day name in any case.
func ParseWeekday(s string) (Weekday, error) {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", apperr.Validationf("unknown weekday %q", s)
}

// WeekdayOf returns the Weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToLower(t.Weekday().String()))
}
