package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the part of *tgbotapi.BotAPI the sender needs.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers alerts through the Telegram Bot API, retrying
// with a linearly growing delay.
type TelegramSender struct {
	bot        botAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// NewTelegramSender authenticates the bot token and parses chatID.
func NewTelegramSender(token, chatID string, maxRetries int, retryDelay time.Duration) (*TelegramSender, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return newTelegramSender(bot, id, maxRetries, retryDelay), nil
}

func newTelegramSender(bot botAPI, chatID int64, maxRetries int, retryDelay time.Duration) *TelegramSender {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &TelegramSender{bot: bot, chatID: chatID, maxRetries: maxRetries, retryDelay: retryDelay}
}

// Send posts the alert as MarkdownV2 with the title in bold.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, formatTelegram(title, message))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		if _, lastErr = t.bot.Send(msg); lastErr == nil {
			return nil
		}
		if attempt == t.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram: send: %w", ctx.Err())
		case <-time.After(t.retryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("telegram: send after %d attempts: %w", t.maxRetries, lastErr)
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}

func formatTelegram(title, message string) string {
	return "*" + escapeMarkdownV2(title) + "*\n" + escapeMarkdownV2(message)
}

// markdownV2Escaper escapes every character MarkdownV2 reserves.
var markdownV2Escaper = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

func escapeMarkdownV2(s string) string {
	return markdownV2Escaper.Replace(s)
}
