package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the subset of tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram forwards notifications to a chat. Only severities at or above
// MinSeverity are sent.
type Telegram struct {
	bot         Sender
	chatID      int64
	explorerURL func(txHash string) string
	logger      *zap.Logger
	MinSeverity Severity
}

func NewTelegram(bot Sender, chatID int64, explorerURL func(string) string, logger *zap.Logger) *Telegram {
	return &Telegram{
		bot:         bot,
		chatID:      chatID,
		explorerURL: explorerURL,
		logger:      logger,
		MinSeverity: SeveritySuccess,
	}
}

var severityRank = map[Severity]int{
	SeverityInfo:    0,
	SeveritySuccess: 1,
	SeverityWarning: 2,
	SeverityError:   3,
}

func (t *Telegram) Notify(_ context.Context, n Notification) {
	if severityRank[n.Severity] < severityRank[t.MinSeverity] {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, t.format(n))
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("telegram delivery failed", zap.Int64("chat", t.chatID), zap.Error(err))
	}
}

func (t *Telegram) format(n Notification) string {
	text := fmt.Sprintf("*%s*", n.Title)
	if n.Message != "" {
		text += "\n" + n.Message
	}
	if n.Hint != "" {
		text += "\n_" + n.Hint + "_"
	}
	if n.TxHash != "" {
		text += fmt.Sprintf("\nTx: `%s`", n.TxHash)
		if t.explorerURL != nil {
			text += fmt.Sprintf("\n[View on Explorer](%s)", t.explorerURL(n.TxHash))
		}
	}
	return text
}
