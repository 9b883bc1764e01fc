package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"

	"otdbot/internal/selector"
)

// Telegram sends the selection to a chat as an HTML-formatted message.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	// Offline skips the getMe handshake at construction (tests).
	Offline bool
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: cfg.Offline})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, sel selector.Selection) error {
	_ = ctx // telebot manages its own request deadlines
	msg := FormatTelegram(sel)
	_, err := t.bot.Send(tele.ChatID(t.chatID), msg, &tele.SendOptions{
		ParseMode: tele.ModeHTML,
	})
	return err
}

// FormatTelegram renders the selection as Telegram HTML. Event text is
// escaped; the link is carried on the year, matching the Discord embed.
func FormatTelegram(sel selector.Selection) string {
	return fmt.Sprintf("📅 <b>On This Day - %s</b>\n\n<b><a href=\"%s\">%s</a></b> — %s",
		html.EscapeString(sel.DateKey),
		html.EscapeString(sel.Link),
		html.EscapeString(sel.Year),
		html.EscapeString(sel.Event),
	)
}
