package notify

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier posts a short summary to a chat after each sync run.
type TelegramNotifier struct {
	bot    *tele.Bot
	chat   *tele.Chat
	logger *logrus.Entry
}

func NewTelegramNotifier(token string, chatID int64, logger *logrus.Entry) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chat:   &tele.Chat{ID: chatID},
		logger: logger,
	}, nil
}

// SyncCompleted reports the outcome of a finished synchronization.
func (n *TelegramNotifier) SyncCompleted(inserted, updated int) error {
	if inserted == 0 && updated == 0 {
		return nil
	}

	message := fmt.Sprintf(
		"Tender sync finished: %d new, %d updated.",
		inserted, updated,
	)
	if _, err := n.bot.Send(n.chat, message); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"inserted": inserted,
		"updated":  updated,
	}).Info("sync notification sent")
	return nil
}
