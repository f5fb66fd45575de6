// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"

	domainTelegram "pool_maintenance_service/internal/domain/telegram"
)

var _ domainTelegram.Client = (*TelebotAdapter)(nil)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendText sends a text message to the specified chat.
func (tba *TelebotAdapter) SendText(chatID int64, text string, mode telebot.ParseMode) error {
	recipient := &telebot.Chat{ID: chatID}
	_, err := tba.bot.Send(recipient, text, &telebot.SendOptions{ParseMode: mode, DisableWebPagePreview: true})
	return err
}
