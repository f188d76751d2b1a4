package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tablemind/internal/events"
	"tablemind/internal/models"
)

// BotAPI is the part of the Telegram client the sink uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts alerts to staff chats.
type TelegramSink struct {
	bot     BotAPI
	chatIDs []int64
}

// NewTelegramSink creates a sink posting to every chat in chatIDs.
func NewTelegramSink(bot BotAPI, chatIDs []int64) *TelegramSink {
	return &TelegramSink{bot: bot, chatIDs: chatIDs}
}

// NewTelegramBot connects to the Bot API.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(_ context.Context, alert models.Alert) error {
	text := formatAlert(alert)
	for _, chatID := range s.chatIDs {
		if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			return translateTelegramError(err)
		}
	}
	return nil
}

func formatAlert(alert models.Alert) string {
	icon := "ℹ️"
	if alert.Severity == models.SeverityWarning {
		icon = "⚠️"
	}
	return fmt.Sprintf("%s [%s] %s", icon, alert.RestaurantID, alert.Text)
}

func translateTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &DeliveryError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
		}
	}
	return err
}

// Publisher is satisfied by the event bus.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// EventSink republishes alerts as AlertRaised events.
type EventSink struct {
	publisher Publisher
}

func NewEventSink(publisher Publisher) *EventSink {
	return &EventSink{publisher: publisher}
}

func (s *EventSink) Name() string { return "events" }

func (s *EventSink) Send(_ context.Context, alert models.Alert) error {
	return s.publisher.PublishJSON(events.AlertRaised, alert)
}

// LogSink writes alerts to the log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, alert models.Alert) error {
	ev := s.logger.Info()
	if alert.Severity == models.SeverityWarning {
		ev = s.logger.Warn()
	}
	ev.Str("key", alert.Key).
		Str("kind", string(alert.Kind)).
		Str("restaurant_id", alert.RestaurantID).
		Msg(alert.Text)
	return nil
}
