package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	sent []tgbotapi.Chattable
	err  error
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c)
	return tgbotapi.Message{}, r.err
}

func TestPost(t *testing.T) {
	rec := &recorder{}
	chat := newWithSender(rec, -10042)

	require.NoError(t, chat.Post(context.Background(), "refund requested"))
	require.Len(t, rec.sent, 1)

	msg, ok := rec.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-10042), msg.ChatID)
	assert.Equal(t, "refund requested", msg.Text)
}

func TestPostErrors(t *testing.T) {
	rec := &recorder{err: errors.New("bot was blocked")}
	chat := newWithSender(rec, 1)
	assert.ErrorContains(t, chat.Post(context.Background(), "x"), "bot was blocked")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.err = nil
	assert.ErrorIs(t, chat.Post(ctx, "x"), context.Canceled)
	assert.Len(t, rec.sent, 1)
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New("", 1)
	assert.Error(t, err)
	_, err = New("token", 0)
	assert.Error(t, err)
}
