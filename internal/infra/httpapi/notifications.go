package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/notification"
)

// ListNotifications returns open notifications, optionally for one ?client_id.
func ListNotifications(log *logrus.Entry, ns app.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.ListNotifications"

		var clientID int64
		if v := r.URL.Query().Get("client_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, r, log, op, apperr.Validationf("invalid client_id %q", v))
				return
			}
			clientID = id
		}

		list, err := ns.ListOpen(r.Context(), companyID(r), clientID)
		if err != nil {
			writeError(w, r, log, op, err)
			return
		}
		resp := make([]notificationResponse, 0, len(list))
		for _, n := range list {
			resp = append(resp, newNotificationResponse(n))
		}
		render.JSON(w, r, resp)
	}
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

func AssignNotification(log *logrus.Entry, ns app.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.AssignNotification"

		var req assignRequest
		withNotification(w, r, log, op, &req, func(id int64) (*notification.Notification, error) {
			return ns.Assign(r.Context(), companyID(r), id, req.Assignee)
		})
	}
}

type resolveRequest struct {
	ExtraServiceValue *float64 `json:"extra_service_value"`
}

func ResolveNotification(log *logrus.Entry, ns app.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.ResolveNotification"

		var req resolveRequest
		withNotification(w, r, log, op, &req, func(id int64) (*notification.Notification, error) {
			return ns.Resolve(r.Context(), companyID(r), id, req.ExtraServiceValue)
		})
	}
}

type attachmentRequest struct {
	Ref string `json:"ref"`
}

func AddNotificationAttachment(log *logrus.Entry, ns app.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "httpapi.AddNotificationAttachment"

		var req attachmentRequest
		withNotification(w, r, log, op, &req, func(id int64) (*notification.Notification, error) {
			return ns.AddAttachment(r.Context(), companyID(r), id, req.Ref)
		})
	}
}

// withNotification parses {id}, decodes the body into req and renders the mutated notification.
func withNotification(w http.ResponseWriter, r *http.Request, log *logrus.Entry, op string, req any,
	mutate func(id int64) (*notification.Notification, error),
) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log, op, err)
		return
	}
	if err := decode(r, req); err != nil {
		writeError(w, r, log, op, err)
		return
	}
	n, err := mutate(id)
	if err != nil {
		writeError(w, r, log, op, err)
		return
	}
	render.JSON(w, r, newNotificationResponse(n))
}
