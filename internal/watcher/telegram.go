package watcher

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
)

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts stock alerts to a single chat.
type TelegramNotifier struct {
	bot    BotSender
	chatID int64
	// AdminURL, when set, adds a button linking to the shop's inventory page.
	AdminURL string
}

func NewTelegramNotifier(bot BotSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) NotifyLowStock(_ context.Context, parts []vespa.LowStockPart) error {
	msg := tgbotapi.NewMessage(n.chatID, formatLowStockMessage(parts))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if n.AdminURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Open inventory", n.AdminURL),
			),
		)
	}

	if _, err := n.bot.Send(msg); err != nil {
		log.Error().Err(err).Int64("chatID", n.chatID).Int("parts", len(parts)).Msg("failed to send stock alert")
		return fmt.Errorf("failed to send stock alert: %w", err)
	}

	log.Debug().Int64("chatID", n.chatID).Int("parts", len(parts)).Msg("stock alert sent")
	return nil
}
