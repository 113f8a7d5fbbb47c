package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/league-engine/metrics"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Bus is an in-process watermill pub/sub. Every subscriber gets its own copy
// of each event.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
	now    func() time.Time
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger)),
		logger: logger,
		now:    time.Now,
	}
}

func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set("type", string(evt.Type))
	msg.SetContext(ctx)

	b.logger.Debug("publishing event",
		slog.String("event_id", evt.ID),
		slog.String("type", string(evt.Type)),
		slog.Int("category_id", evt.CategoryID),
	)
	if err := b.pubsub.Publish(TopicProgression, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(evt.Type)).Inc()
	return nil
}

// Subscribe runs h for every event until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, name string, h Handler) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicProgression)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", name, err)
	}
	go func() {
		for msg := range messages {
			var evt Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				b.logger.Error("dropping malformed event", slog.String("subscriber", name), slog.Any("error", err))
				msg.Ack()
				continue
			}
			if err := h(msg.Context(), evt); err != nil {
				b.logger.Warn("event handler failed",
					slog.String("subscriber", name),
					slog.String("event_id", evt.ID),
					slog.Any("error", err),
				)
				msg.Ack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
