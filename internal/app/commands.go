// internal/app/commands.go
package app

import (
	"math"
	"strings"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/dosing"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/parameter"
)

// OpenCycleCommand opens (or returns) the pending cycle of a client on a weekday.
// An empty Weekday means today.
type OpenCycleCommand struct {
	CompanyID int64
	ClientID  int64
	Weekday   maintenance.Weekday
}

func (c OpenCycleCommand) Validate() error {
	if c.CompanyID <= 0 {
		return apperr.Validationf("company_id is required")
	}
	if c.ClientID <= 0 {
		return apperr.Validationf("client_id is required")
	}
	_, err := maintenance.ParseWeekday(string(c.Weekday))
	return err
}

// RecordMeasurementCommand stores a reading for one parameter of a pending cycle.
type RecordMeasurementCommand struct {
	CompanyID int64
	RecordID  int64
	Parameter string
	Value     float64
}

func (c RecordMeasurementCommand) Validate() error {
	if err := validateTarget(c.CompanyID, c.RecordID, c.Parameter); err != nil {
		return err
	}
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return apperr.Validationf("measurement of %s is not a number", c.Parameter)
	}
	if dosing.Round2(c.Value) < 0 {
		return apperr.Validationf("measurement of %s must not be negative", c.Parameter)
	}
	return nil
}

// SetParameterStatusCommand changes the outcome of a parameter.
// Product and Quantity override the recommendation for applied and out_of_stock.
type SetParameterStatusCommand struct {
	CompanyID int64
	RecordID  int64
	Parameter string
	Status    maintenance.InstanceStatus
	Product   string
	Quantity  *float64
	Reason    string
	Actor     maintenance.Actor
}

func (c SetParameterStatusCommand) Validate() error {
	if err := validateTarget(c.CompanyID, c.RecordID, c.Parameter); err != nil {
		return err
	}
	if _, err := maintenance.ParseInstanceStatus(string(c.Status)); err != nil {
		return err
	}
	if c.Actor != maintenance.ActorTechnician && c.Actor != maintenance.ActorAdmin {
		return apperr.Validationf("unknown actor %q", c.Actor)
	}
	if c.Quantity != nil {
		q := *c.Quantity
		if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
			return apperr.Validationf("quantity must be a non-negative number")
		}
	}
	return nil
}

// ConcludeCommand closes a pending cycle with a terminal status.
type ConcludeCommand struct {
	CompanyID int64
	RecordID  int64
	Outcome   maintenance.RecordStatus
}

func (c ConcludeCommand) Validate() error {
	if c.CompanyID <= 0 {
		return apperr.Validationf("company_id is required")
	}
	if c.RecordID <= 0 {
		return apperr.Validationf("record id is required")
	}
	if !c.Outcome.IsTerminal() {
		return apperr.Validationf("outcome must be %s or %s", maintenance.RecordConcluded, maintenance.RecordNotConcluded)
	}
	return nil
}

func validateTarget(companyID, recordID int64, name string) error {
	if companyID <= 0 {
		return apperr.Validationf("company_id is required")
	}
	if recordID <= 0 {
		return apperr.Validationf("record id is required")
	}
	if strings.TrimSpace(name) == "" {
		return apperr.Validationf("parameter name is required")
	}
	return nil
}

// ParameterView is one parameter of a cycle with its live recommendation.
// Recommendation is nil until the parameter is measured or when the dosing math fails;
// RecommendationError then says why.
type ParameterView struct {
	Instance            *maintenance.Instance
	Definition          *parameter.Definition
	Recommendation      *dosing.Recommendation
	RecommendationError string
}

// CycleView is a record with its parameters. Created is set when OpenCycle inserted it.
type CycleView struct {
	Record     *maintenance.Record
	Client     *maintenance.Client
	Parameters []ParameterView
	Created    bool
}
