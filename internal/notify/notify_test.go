package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tablemind/internal/events"
	"tablemind/internal/models"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type scriptedSink struct {
	name  string
	errs  []error
	calls int
}

func (s *scriptedSink) Name() string { return s.name }

func (s *scriptedSink) Send(context.Context, models.Alert) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

var alert = models.Alert{
	Key:          "lowstaff:r1",
	Kind:         models.AlertStaffing,
	Severity:     models.SeverityWarning,
	Text:         "3 reservations in the next 30 minutes with 1 waiter(s) on shift",
	RestaurantID: "r1",
	CreatedAt:    time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC),
}

func fastConfig() Config {
	return Config{
		Rate:  1000,
		Burst: 100,
		Retry: RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}},
	}
}

func TestDispatcher_Retry(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("TransientThenSuccess", func(t *testing.T) {
		sink := &scriptedSink{name: "flaky", errs: []error{errors.New("timeout"), errors.New("timeout")}}
		d := NewDispatcher(fastConfig(), logger, sink)

		require.NoError(t, d.Notify(ctx, alert))
		assert.Equal(t, 3, sink.calls)
	})

	t.Run("MaxRetriesExceeded", func(t *testing.T) {
		boom := errors.New("timeout")
		sink := &scriptedSink{name: "down", errs: []error{boom, boom, boom, boom}}
		d := NewDispatcher(fastConfig(), logger, sink)

		err := d.Notify(ctx, alert)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, sink.calls)
	})

	t.Run("PermanentErrorNotRetried", func(t *testing.T) {
		sink := &scriptedSink{name: "blocked", errs: []error{&DeliveryError{Code: 403, Message: "bot was blocked"}}}
		d := NewDispatcher(fastConfig(), logger, sink)

		err := d.Notify(ctx, alert)
		require.Error(t, err)
		dErr, ok := AsDeliveryError(err)
		require.True(t, ok)
		assert.Equal(t, 403, dErr.Code)
		assert.Equal(t, 1, sink.calls)
	})

	t.Run("CancelledWhileWaiting", func(t *testing.T) {
		sink := &scriptedSink{name: "slow", errs: []error{errors.New("timeout")}}
		cfg := fastConfig()
		cfg.Retry.RetryDelays = []time.Duration{time.Hour}
		d := NewDispatcher(cfg, logger, sink)

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, d.Notify(ctx, alert), context.DeadlineExceeded)
	})
}

func TestDispatcher_FanOut(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	ok := &scriptedSink{name: "ok"}
	broken := &scriptedSink{name: "broken", errs: []error{&DeliveryError{Code: 400, Message: "chat not found"}}}
	d := NewDispatcher(fastConfig(), logger, broken, ok)

	assert.NoError(t, d.Notify(ctx, alert))
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, broken.calls)

	assert.NoError(t, NewDispatcher(fastConfig(), logger).Notify(ctx, alert))
}

func TestTelegramSink(t *testing.T) {
	ctx := context.Background()

	t.Run("PostsToEveryChat", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && (msg.ChatID == 11 || msg.ChatID == 22) && msg.Text == "⚠️ [r1] "+alert.Text
		})).Return(nil).Twice()

		require.NoError(t, NewTelegramSink(bot, []int64{11, 22}).Send(ctx, alert))
		bot.AssertExpectations(t)
	})

	t.Run("TranslatesRateLimit", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("Send", mock.Anything).Return(&tgbotapi.Error{
			Code:               429,
			Message:            "Too Many Requests",
			ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
		})

		err := NewTelegramSink(bot, []int64{11}).Send(ctx, alert)
		dErr, ok := AsDeliveryError(err)
		require.True(t, ok)
		assert.Equal(t, 429, dErr.Code)
		assert.Equal(t, 7, dErr.RetryAfter)
		assert.False(t, dErr.Permanent())
	})
}

func TestEventSink(t *testing.T) {
	bus := events.NewEventBus()
	var got models.Alert
	bus.Subscribe(events.AlertRaised, func(e events.Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	require.NoError(t, NewEventSink(bus).Send(context.Background(), alert))
	assert.Equal(t, alert.Key, got.Key)
	assert.Equal(t, alert.Severity, got.Severity)
}
