package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/plan"
)

// publishFunc publishes one message and waits for the server id.
type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// PubSubTracker publishes events to a Pub/Sub topic as JSON.
type PubSubTracker struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	publish   publishFunc
	topic     string
	logger    zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub tracker.
type PubSubConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// NewPubSubTracker creates a tracker that publishes to cfg.Topic.
func NewPubSubTracker(ctx context.Context, cfg PubSubConfig) (*PubSubTracker, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	publisher := client.Publisher(cfg.Topic)

	return &PubSubTracker{
		client:    client,
		publisher: publisher,
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return publisher.Publish(ctx, msg).Get(ctx)
		},
		topic:  cfg.Topic,
		logger: cfg.Logger,
	}, nil
}

// Track implements plan.Tracker.
func (t *PubSubTracker) Track(ctx context.Context, e *plan.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	id, err := t.publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":  e.Name,
			"run_id": e.RunID,
		},
	})
	if err != nil {
		return fmt.Errorf("publishing event to %s: %w", t.topic, err)
	}

	t.logger.Debug().
		Str("message_id", id).
		Str("event", e.Name).
		Str("run_id", e.RunID).
		Msg("published plan event")
	return nil
}

// Close flushes pending messages and closes the Pub/Sub client.
func (t *PubSubTracker) Close() error {
	if t.publisher != nil {
		t.publisher.Stop()
	}
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
