package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/maintenance"
)

type CycleWorkflow interface {
	OpenCycle(ctx context.Context, cmd app.OpenCycleCommand) (*app.CycleView, error)
	GetCycle(ctx context.Context, companyID, recordID int64) (*app.CycleView, error)
	RecordMeasurement(ctx context.Context, cmd app.RecordMeasurementCommand) (*app.ParameterView, error)
	SetParameterStatus(ctx context.Context, cmd app.SetParameterStatusCommand) (*app.ParameterView, error)
	ConcludeRecord(ctx context.Context, cmd app.ConcludeCommand) (*maintenance.Record, error)
}

type openCycleRequest struct {
	ClientID int64  `json:"client_id"`
	Weekday  string `json:"weekday"`
}

// OpenCycle fetches or creates the pending cycle. 201 when a record was inserted, 200 otherwise.
func OpenCycle(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.OpenCycle"

		var req openCycleRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}

		view, err := wf.OpenCycle(r.Context(), app.OpenCycleCommand{
			CompanyID: companyID(r),
			ClientID:  req.ClientID,
			Weekday:   maintenance.Weekday(req.Weekday),
		})
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}

		if view.Created {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, newCycleResponse(view))
	}
}

func GetCycle(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.GetCycle"

		recordID, err := pathID(r, "recordID")
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		view, err := wf.GetCycle(r.Context(), companyID(r), recordID)
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newCycleResponse(view))
	}
}

type measurementRequest struct {
	Parameter string   `json:"parameter"`
	Value     *float64 `json:"value"`
}

func RecordMeasurement(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.RecordMeasurement"

		recordID, err := pathID(r, "recordID")
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		var req measurementRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}
		if req.Value == nil {
			writeError(w, r, log, op, apperr.Validationf("value is required"))
			return
		}

		view, err := wf.RecordMeasurement(r.Context(), app.RecordMeasurementCommand{
			CompanyID: companyID(r),
			RecordID:  recordID,
			Parameter: req.Parameter,
			Value:     *req.Value,
		})
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newParameterResponse(*view))
	}
}

type statusRequest struct {
	Status   string   `json:"status"`
	Product  string   `json:"product"`
	Quantity *float64 `json:"quantity"`
	Reason   string   `json:"reason"`
}

// SetParameterStatus is the technician path for every parameter status.
func SetParameterStatus(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.SetParameterStatus"

		recordID, err := pathID(r, "recordID")
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		var req statusRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}
		status, err := maintenance.ParseInstanceStatus(req.Status)
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}

		view, err := wf.SetParameterStatus(r.Context(), app.SetParameterStatusCommand{
			CompanyID: companyID(r),
			RecordID:  recordID,
			Parameter: chi.URLParam(r, "name"),
			Status:    status,
			Product:   req.Product,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			Actor:     maintenance.ActorTechnician,
		})
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newParameterResponse(*view))
	}
}

type assistRequest struct {
	Reason string `json:"reason"`
}

// AssistParameter lets an administrator mark a parameter not_adjustable for the technician.
func AssistParameter(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.AssistParameter"

		recordID, err := pathID(r, "recordID")
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		var req assistRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}

		view, err := wf.SetParameterStatus(r.Context(), app.SetParameterStatusCommand{
			CompanyID: companyID(r),
			RecordID:  recordID,
			Parameter: chi.URLParam(r, "name"),
			Status:    maintenance.StatusNotAdjustable,
			Reason:    req.Reason,
			Actor:     maintenance.ActorAdmin,
		})
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newParameterResponse(*view))
	}
}

type concludeRequest struct {
	Outcome string `json:"outcome"`
}

func ConcludeRecord(log *logrus.Entry, wf CycleWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.ConcludeRecord"

		recordID, err := pathID(r, "recordID")
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		var req concludeRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}

		rec, err := wf.ConcludeRecord(r.Context(), app.ConcludeCommand{
			CompanyID: companyID(r),
			RecordID:  recordID,
			Outcome:   maintenance.RecordStatus(req.Outcome),
		})
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newRecordResponse(rec))
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s %q", key, chi.URLParam(r, key))
	}
	return id, nil
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
