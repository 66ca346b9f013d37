package telegram

import "gopkg.in/telebot.v3"

// Client is the messaging sink: it posts a message into a Telegram chat,
// usually a community group or channel bound to a feature.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
