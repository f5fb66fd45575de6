package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pool_maintenance_service/internal/domain/notification"
	domainTelegram "pool_maintenance_service/internal/domain/telegram"
)

// ManagerNotifier forwards newly raised notifications of one company to the manager's chat.
type ManagerNotifier struct {
	client    domainTelegram.Client
	chatID    int64
	companyID int64
	logger    *logrus.Entry
}

func NewManagerNotifier(client domainTelegram.Client, chatID, companyID int64, logger *logrus.Entry) *ManagerNotifier {
	return &ManagerNotifier{client: client, chatID: chatID, companyID: companyID, logger: logger}
}

// Notify implements app.Notifier. Notifications of other companies are skipped.
func (n *ManagerNotifier) Notify(ctx context.Context, alert *notification.Notification) error {
	if alert.CompanyID != n.companyID {
		n.logger.WithFields(logrus.Fields{"company_id": alert.CompanyID, "notification_id": alert.ID}).
			Debug("Notification belongs to another company, not forwarding")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.client.SendText(n.chatID, formatAlert(alert), telebot.ModeHTML); err != nil {
		return fmt.Errorf("failed to send notification %d to manager: %w", alert.ID, err)
	}
	n.logger.WithField("notification_id", alert.ID).Info("Notification forwarded to manager")
	return nil
}

func formatAlert(alert *notification.Notification) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(alert.Subject)))
	b.WriteString(html.EscapeString(alert.Message))
	b.WriteString(fmt.Sprintf("\n\nClient: %d | Topic: %s | ID: %d", alert.ClientID, html.EscapeString(string(alert.Topic)), alert.ID))
	b.WriteString(fmt.Sprintf("\nTake it with /assign %d &lt;name&gt;", alert.ID))
	return b.String()
}
