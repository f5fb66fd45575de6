package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/parameter"
)

type ParameterCatalog interface {
	Create(ctx context.Context, def *parameter.Definition) (*parameter.Definition, error)
	Update(ctx context.Context, def *parameter.Definition) (*parameter.Definition, error)
	Get(ctx context.Context, companyID int64, name string) (*parameter.Definition, error)
	List(ctx context.Context, companyID int64, activeOnly bool) ([]*parameter.Definition, error)
	SetActive(ctx context.Context, companyID int64, name string, active bool) (*parameter.Definition, error)
}

// ListParameters returns the catalog; ?active=true keeps only active definitions.
func ListParameters(log *logrus.Entry, catalog ParameterCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.ListParameters"

		activeOnly := false
		if v := r.URL.Query().Get("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, r, log, op, apperr.Validationf("invalid active filter %q", v))
				return
			}
			activeOnly = b
		}

		defs, err := catalog.List(r.Context(), companyID(r), activeOnly)
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		resp := make([]definitionPayload, 0, len(defs))
		for _, d := range defs {
			resp = append(resp, newDefinitionPayload(d))
		}
		render.JSON(w, r, resp)
	}
}

func CreateParameter(log *logrus.Entry, catalog ParameterCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.CreateParameter"

		var req definitionPayload
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}
		def, err := catalog.Create(r.Context(), req.toDefinition(companyID(r)))
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, newDefinitionPayload(def))
	}
}

func GetParameter(log *logrus.Entry, catalog ParameterCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.GetParameter"

		def, err := catalog.Get(r.Context(), companyID(r), chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newDefinitionPayload(def))
	}
}

// UpdateParameter replaces a definition; the name comes from the path.
func UpdateParameter(log *logrus.Entry, catalog ParameterCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.UpdateParameter"

		var req definitionPayload
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}
		req.Name = chi.URLParam(r, "name")

		def, err := catalog.Update(r.Context(), req.toDefinition(companyID(r)))
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newDefinitionPayload(def))
	}
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func SetParameterActive(log *logrus.Entry, catalog ParameterCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.SetParameterActive"

		var req activeRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, op, err)
			return
		}
		if req.Active == nil {
			writeError(w, r, log, op, apperr.Validationf("active is required"))
			return
		}

		def, err := catalog.SetActive(r.Context(), companyID(r), chi.URLParam(r, "name"), *req.Active)
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newDefinitionPayload(def))
	}
}
