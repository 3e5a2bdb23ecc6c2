package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shareit/internal/events"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventRelay пересылает события шины в канал Redis для внешних потребителей.
// Шина вызывает обработчики синхронно, поэтому приём только кладёт событие в буфер.
type EventRelay struct {
	redis   *redis.Client
	channel string
	retry   RetryPolicy
	queue   chan *events.Event
	logger  *zerolog.Logger
	done    chan struct{}
}

func NewEventRelay(client *redis.Client, channel string, queueSize int, retry RetryPolicy, logger *zerolog.Logger) *EventRelay {
	if queueSize <= 0 {
		queueSize = models.DefaultRelayQueueSize
	}
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 1
	}
	l := logger.With().Str("component", "event_relay").Logger()

	return &EventRelay{
		redis:   client,
		channel: channel,
		retry:   retry,
		queue:   make(chan *events.Event, queueSize),
		logger:  &l,
		done:    make(chan struct{}),
	}
}

// Attach подписывает ретранслятор на все события шины.
func (r *EventRelay) Attach(bus *events.EventBus) {
	bus.SubscribeAll(r.enqueue)
}

func (r *EventRelay) enqueue(event *events.Event) error {
	select {
	case r.queue <- event:
		return nil
	default:
		metrics.IncRelay("dropped")
		r.logger.Warn().Str("type", event.Type).Int64("event_id", event.ID).Msg("relay queue full, event dropped")
		return errors.New("relay queue full")
	}
}

// Start обрабатывает очередь до отмены контекста; оставшиеся события дописываются.
func (r *EventRelay) Start(ctx context.Context) {
	r.logger.Info().Str("channel", r.channel).Msg("event relay started")
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info().Msg("event relay stopped")
			return
		case event := <-r.queue:
			r.deliver(ctx, event)
		}
	}
}

// Done закрывается после выхода из Start.
func (r *EventRelay) Done() <-chan struct{} {
	return r.done
}

func (r *EventRelay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-r.queue:
			r.deliver(ctx, event)
		default:
			return
		}
	}
}

func (r *EventRelay) deliver(ctx context.Context, event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.IncRelay("failed")
		r.logger.Error().Err(err).Str("type", event.Type).Msg("encode event")
		return
	}

	for attempt := 1; attempt <= r.retry.MaxRetries; attempt++ {
		err = r.publish(ctx, data)
		if err == nil {
			metrics.IncRelay("ok")
			return
		}
		if attempt == r.retry.MaxRetries {
			break
		}
		metrics.IncRelay("retry")

		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = r.retry.MaxRetries
		case <-time.After(r.retry.NextDelay(attempt)):
		}
	}

	metrics.IncRelay("failed")
	r.logger.Error().
		Err(err).
		Str("type", event.Type).
		Int64("event_id", event.ID).
		Int("attempts", r.retry.MaxRetries).
		Msg("relay publish failed")
}

func (r *EventRelay) publish(ctx context.Context, data []byte) error {
	if r.redis == nil {
		return errors.New("redis client is nil")
	}
	if err := r.redis.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}
