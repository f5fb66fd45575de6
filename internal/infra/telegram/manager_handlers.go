// internal/infra/telegram/manager_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/domain/apperr"
)

const commandTimeout = 10 * time.Second

// ManagerHandlers answers the manager's chat commands about open notifications.
// Every command is bound to one company; other senders are refused.
type ManagerHandlers struct {
	notifications app.NotificationService
	managerID     int64
	companyID     int64
	logger        *logrus.Entry
}

func NewManagerHandlers(ns app.NotificationService, managerID, companyID int64, logger *logrus.Entry) *ManagerHandlers {
	return &ManagerHandlers{notifications: ns, managerID: managerID, companyID: companyID, logger: logger}
}

// Register binds the commands to the bot.
func (h *ManagerHandlers) Register(b *telebot.Bot) {
	b.Handle("/start", h.wrap("/start", func(_ context.Context, _ []string) string {
		return "Pool maintenance alerts are on. Use /help for the list of commands."
	}))
	b.Handle("/help", h.wrap("/help", func(_ context.Context, _ []string) string { return helpText() }))
	b.Handle("/alerts", h.wrap("/alerts", h.alerts))
	b.Handle("/assign", h.wrap("/assign", h.assign))
	b.Handle("/resolve", h.wrap("/resolve", h.resolve))
}

func (h *ManagerHandlers) wrap(command string, fn func(ctx context.Context, args []string) string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := h.logger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != h.managerID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("You are not allowed to use this command.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()))
	}
}

func helpText() string {
	var text strings.Builder
	text.WriteString("Available commands:\n\n")
	text.WriteString("/alerts [client_id] - list open notifications\n")
	text.WriteString("/assign <id> <name> - take a notification\n")
	text.WriteString("/resolve <id> [extra_service_value] - close a notification\n")
	text.WriteString("/help - show this message")
	return text.String()
}

func (h *ManagerHandlers) alerts(ctx context.Context, args []string) string {
	var clientID int64
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return "Client id must be a positive number."
		}
		clientID = id
	}

	list, err := h.notifications.ListOpen(ctx, h.companyID, clientID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list open notifications")
		return "Could not load notifications, please try again later."
	}
	if len(list) == 0 {
		return "No open notifications."
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Open notifications (%d) ---\n", len(list)))
	for _, n := range list {
		assignee := "unassigned"
		if n.Assignee.Valid {
			assignee = n.Assignee.String
		}
		response.WriteString(fmt.Sprintf("#%d client %d: %s [%s, %s]\n", n.ID, n.ClientID, n.Subject, n.Status, assignee))
	}
	return response.String()
}

func (h *ManagerHandlers) assign(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Usage: /assign <id> <name>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Notification id must be a number."
	}

	n, err := h.notifications.Assign(ctx, h.companyID, id, strings.Join(args[1:], " "))
	if err != nil {
		return h.failure("assign", id, err)
	}
	return fmt.Sprintf("Notification #%d assigned to %s.", n.ID, n.Assignee.String)
}

func (h *ManagerHandlers) resolve(ctx context.Context, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /resolve <id> [extra_service_value]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Notification id must be a number."
	}
	var extra *float64
	if len(args) == 2 {
		v, err := strconv.ParseFloat(strings.Replace(args[1], ",", ".", 1), 64)
		if err != nil {
			return "Extra service value must be a number."
		}
		extra = &v
	}

	n, err := h.notifications.Resolve(ctx, h.companyID, id, extra)
	if err != nil {
		return h.failure("resolve", id, err)
	}
	if n.ExtraServiceValue.Valid {
		return fmt.Sprintf("Notification #%d resolved, extra service %.2f.", n.ID, n.ExtraServiceValue.Float64)
	}
	return fmt.Sprintf("Notification #%d resolved.", n.ID)
}

func (h *ManagerHandlers) failure(action string, id int64, err error) string {
	logWithError := h.logger.WithError(err).WithFields(logrus.Fields{"action": action, "notification_id": id})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logWithError.Warn("Notification not found")
		return fmt.Sprintf("Notification #%d not found.", id)
	case errors.Is(err, apperr.ErrInvalidStateTransition):
		logWithError.Warn("Notification already resolved")
		return fmt.Sprintf("Notification #%d is already resolved.", id)
	case errors.Is(err, apperr.ErrValidation):
		logWithError.Warn("Invalid command arguments")
		return err.Error()
	default:
		logWithError.Error("Failed to update notification")
		return fmt.Sprintf("Could not %s notification #%d, please try again later.", action, id)
	}
}
