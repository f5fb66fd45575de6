package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/app"
)

type resetErrorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id"`
	Step  string `json:"step"`
}

// ResetCompany runs the company-wide reset for the caller's company.
// "Nothing to reset" is a success with nothing_to_reset=true.
func ResetCompany(log *logrus.Entry, rs app.ResetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.ResetCompany"

		report, err := rs.ResetCompany(r.Context(), companyID(r))
		if err != nil {
			var resetErr *app.ResetError
			if errors.As(err, &resetErr) && statusFor(resetErr.Err) == http.StatusInternalServerError {
				log.WithError(err).WithField("op", op).Error("Company reset failed")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resetErrorResponse{
					Error: "reset failed",
					RunID: resetErr.RunID.String(),
					Step:  resetErr.Step,
				})
				return
			}
			writeError(w, r, log, op, err)
			return
		}
		render.JSON(w, r, newResetResponse(report))
	}
}
