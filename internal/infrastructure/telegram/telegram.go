// Package telegram posts operator notices to an administrators' chat.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type AdminChat struct {
	api    sender
	chatID int64
}

// New connects the bot. The token is checked against the Bot API once here.
func New(token string, chatID int64) (*AdminChat, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram: token and admin chat id are required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect bot: %w", err)
	}
	return &AdminChat{api: api, chatID: chatID}, nil
}

func newWithSender(api sender, chatID int64) *AdminChat {
	return &AdminChat{api: api, chatID: chatID}
}

// Post sends text to the admin chat. The Bot API client has no context
// support, so ctx is only checked before sending.
func (c *AdminChat) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", c.chatID, err)
	}
	return nil
}
