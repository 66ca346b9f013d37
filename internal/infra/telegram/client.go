// internal/infra/telegram/client.go
package telegram

import (
	"fmt"
	"net/http"
	"time"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// NewSenderBot builds a send-only bot whose HTTP client times out each call
// after sendTimeout. It is never started, so stopping the listening bot does
// not abort deliveries in flight.
func NewSenderBot(token string, sendTimeout time.Duration) (*telebot.Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Client:  &http.Client{Timeout: sendTimeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create sender bot: %w", err)
	}
	return b, nil
}

// SendMessage posts text into the chat (group, channel or private) with the given id.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text, options)
	return err
}
