package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// CompanyHeader carries the tenant resolved by the upstream auth layer.
const CompanyHeader = "X-Company-ID"

type ctxKey int

const companyKey ctxKey = iota

// RequireCompany rejects requests without a positive X-Company-ID and stores it in the context.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(CompanyHeader), 10, 64)
		if err != nil || id <= 0 {
			writeMessage(w, r, http.StatusUnauthorized, "missing or invalid "+CompanyHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), companyKey, id)))
	})
}

// companyID is only valid behind RequireCompany.
func companyID(r *http.Request) int64 {
	id, _ := r.Context().Value(companyKey).(int64)
	return id
}

// RequestLogger logs one line per request through logrus.
func RequestLogger(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("Request failed")
				return
			}
			entry.Debug("Request served")
		})
	}
}
