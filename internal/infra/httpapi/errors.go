package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/apperr"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrTenantMismatch):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrIncompleteConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidStateTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Entry, op string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var incomplete *apperr.IncompleteParametersError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
	}

	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("op", op).Error("Request failed")
		resp.Error = "internal error"
	} else {
		logger.WithError(err).WithFields(logrus.Fields{"op": op, "status": status}).Info("Request rejected")
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}
