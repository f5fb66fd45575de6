package httpapi

import (
	"database/sql"
	"time"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/notification"
	"pool_maintenance_service/internal/domain/parameter"
)

type recordResponse struct {
	ID        int64      `json:"id"`
	ClientID  int64      `json:"client_id"`
	TeamID    int64      `json:"team_id"`
	Weekday   string     `json:"weekday"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type clientResponse struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	PoolVolume *float64 `json:"pool_volume"`
}

type recommendationResponse struct {
	InRange   bool    `json:"in_range"`
	Direction string  `json:"direction,omitempty"`
	Product   string  `json:"product,omitempty"`
	Quantity  float64 `json:"quantity"`
}

type parameterResponse struct {
	Name                string                  `json:"name"`
	Status              string                  `json:"status"`
	LastValue           *float64                `json:"last_value"`
	CurrentValue        *float64                `json:"current_value"`
	AppliedProduct      *string                 `json:"applied_product"`
	AppliedQuantity     *float64                `json:"applied_quantity"`
	ReasonNote          *string                 `json:"reason_note,omitempty"`
	ChangedBy           *string                 `json:"changed_by,omitempty"`
	ValueMin            *float64                `json:"value_min,omitempty"`
	ValueMax            *float64                `json:"value_max,omitempty"`
	ValueTarget         *float64                `json:"value_target,omitempty"`
	Recommendation      *recommendationResponse `json:"recommendation,omitempty"`
	RecommendationError string                  `json:"recommendation_error,omitempty"`
}

type cycleResponse struct {
	Record     recordResponse      `json:"record"`
	Client     *clientResponse     `json:"client,omitempty"`
	Parameters []parameterResponse `json:"parameters"`
	Created    bool                `json:"created"`
}

// definitionPayload is both the request and the response shape of a catalog entry.
type definitionPayload struct {
	Name              string   `json:"name"`
	ValueMin          *float64 `json:"value_min"`
	ValueMax          *float64 `json:"value_max"`
	ValueTarget       *float64 `json:"value_target"`
	ProductIncrease   *string  `json:"product_increase"`
	ProductDecrease   *string  `json:"product_decrease"`
	DosageIncrease    *float64 `json:"dosage_increase"`
	DosageDecrease    *float64 `json:"dosage_decrease"`
	IncrementIncrease *float64 `json:"increment_increase"`
	IncrementDecrease *float64 `json:"increment_decrease"`
	ReferenceVolume   *float64 `json:"reference_volume"`
	AlertAbove        *float64 `json:"alert_above"`
	AlertTopic        *string  `json:"alert_topic"`
	Active            *bool    `json:"active"`
}

type notificationResponse struct {
	ID                int64      `json:"id"`
	ClientID          int64      `json:"client_id"`
	Topic             string     `json:"topic"`
	Subject           string     `json:"subject"`
	Message           string     `json:"message"`
	Status            string     `json:"status"`
	Assignee          *string    `json:"assignee"`
	Attachments       []string   `json:"attachments"`
	ExtraServiceValue *float64   `json:"extra_service_value"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

type resetResponse struct {
	RunID            string    `json:"run_id"`
	CompanyID        int64     `json:"company_id"`
	RecordsCreated   int       `json:"records_created"`
	InstancesCreated int       `json:"instances_created"`
	NothingToReset   bool      `json:"nothing_to_reset"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

func newRecordResponse(rec *maintenance.Record) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		ClientID:  rec.ClientID,
		TeamID:    rec.TeamID,
		Weekday:   string(rec.Weekday),
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		ClosedAt:  timePtr(rec.ClosedAt),
	}
}

func newParameterResponse(v app.ParameterView) parameterResponse {
	inst := v.Instance
	resp := parameterResponse{
		Name:                inst.ParameterName,
		Status:              string(inst.Status),
		LastValue:           floatPtr(inst.LastValue),
		CurrentValue:        floatPtr(inst.CurrentValue),
		AppliedProduct:      stringPtr(inst.AppliedProduct),
		AppliedQuantity:     floatPtr(inst.AppliedQuantity),
		ReasonNote:          stringPtr(inst.ReasonNote),
		ChangedBy:           stringPtr(inst.ChangedBy),
		RecommendationError: v.RecommendationError,
	}
	if v.Definition != nil {
		resp.ValueMin = floatPtr(v.Definition.ValueMin)
		resp.ValueMax = floatPtr(v.Definition.ValueMax)
		resp.ValueTarget = floatPtr(v.Definition.ValueTarget)
	}
	if rec := v.Recommendation; rec != nil {
		resp.Recommendation = &recommendationResponse{
			InRange:   rec.InRange,
			Direction: string(rec.Direction),
			Product:   rec.Product,
			Quantity:  rec.Quantity,
		}
	}
	return resp
}

func newCycleResponse(view *app.CycleView) cycleResponse {
	resp := cycleResponse{
		Record:     newRecordResponse(view.Record),
		Parameters: make([]parameterResponse, 0, len(view.Parameters)),
		Created:    view.Created,
	}
	if c := view.Client; c != nil {
		resp.Client = &clientResponse{ID: c.ID, Name: c.Name, PoolVolume: floatPtr(c.PoolVolume)}
	}
	for _, p := range view.Parameters {
		resp.Parameters = append(resp.Parameters, newParameterResponse(p))
	}
	return resp
}

func newDefinitionPayload(d *parameter.Definition) definitionPayload {
	active := d.Active
	return definitionPayload{
		Name:              d.Name,
		ValueMin:          floatPtr(d.ValueMin),
		ValueMax:          floatPtr(d.ValueMax),
		ValueTarget:       floatPtr(d.ValueTarget),
		ProductIncrease:   stringPtr(d.ProductIncrease),
		ProductDecrease:   stringPtr(d.ProductDecrease),
		DosageIncrease:    floatPtr(d.DosageIncrease),
		DosageDecrease:    floatPtr(d.DosageDecrease),
		IncrementIncrease: floatPtr(d.IncrementIncrease),
		IncrementDecrease: floatPtr(d.IncrementDecrease),
		ReferenceVolume:   floatPtr(d.ReferenceVolume),
		AlertAbove:        floatPtr(d.AlertAbove),
		AlertTopic:        stringPtr(d.AlertTopic),
		Active:            &active,
	}
}

// toDefinition builds a catalog entry for companyID. A missing active flag means active.
func (p definitionPayload) toDefinition(companyID int64) *parameter.Definition {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &parameter.Definition{
		CompanyID:         companyID,
		Name:              p.Name,
		ValueMin:          nullFloat(p.ValueMin),
		ValueMax:          nullFloat(p.ValueMax),
		ValueTarget:       nullFloat(p.ValueTarget),
		ProductIncrease:   nullString(p.ProductIncrease),
		ProductDecrease:   nullString(p.ProductDecrease),
		DosageIncrease:    nullFloat(p.DosageIncrease),
		DosageDecrease:    nullFloat(p.DosageDecrease),
		IncrementIncrease: nullFloat(p.IncrementIncrease),
		IncrementDecrease: nullFloat(p.IncrementDecrease),
		ReferenceVolume:   nullFloat(p.ReferenceVolume),
		AlertAbove:        nullFloat(p.AlertAbove),
		AlertTopic:        nullString(p.AlertTopic),
		Active:            active,
	}
}

func newNotificationResponse(n *notification.Notification) notificationResponse {
	attachments := n.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return notificationResponse{
		ID:                n.ID,
		ClientID:          n.ClientID,
		Topic:             string(n.Topic),
		Subject:           n.Subject,
		Message:           n.Message,
		Status:            string(n.Status),
		Assignee:          stringPtr(n.Assignee),
		Attachments:       attachments,
		ExtraServiceValue: floatPtr(n.ExtraServiceValue),
		CreatedAt:         n.CreatedAt,
		ResolvedAt:        timePtr(n.ResolvedAt),
	}
}

func newResetResponse(r *app.ResetReport) resetResponse {
	return resetResponse{
		RunID:            r.RunID.String(),
		CompanyID:        r.CompanyID,
		RecordsCreated:   r.RecordsCreated,
		InstancesCreated: r.InstancesCreated,
		NothingToReset:   r.NothingToReset,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
