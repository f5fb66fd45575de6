package telegram

import "gopkg.in/telebot.v3"

// Client sends text to a Telegram chat. Alert dispatch depends on this rather than on *telebot.Bot.
type Client interface {
	SendText(chatID int64, text string, mode telebot.ParseMode) error
}
