package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/plan"
)

// ErrMalformedEvent marks a message that redelivery cannot fix.
var ErrMalformedEvent = errors.New("malformed plan event")

// EventProcessor decodes plan events and hands them to a tracker.
type EventProcessor struct {
	tracker plan.Tracker
	logger  zerolog.Logger
}

// NewEventProcessor creates a processor that stores events with tracker.
func NewEventProcessor(tracker plan.Tracker, logger zerolog.Logger) *EventProcessor {
	return &EventProcessor{tracker: tracker, logger: logger}
}

// Process decodes one message body and stores the event.
// Errors wrapping ErrMalformedEvent should be acknowledged, anything else retried.
func (p *EventProcessor) Process(ctx context.Context, data []byte, publishTime time.Time) error {
	var event plan.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch {
	case event.RunID == "":
		return fmt.Errorf("%w: missing runId", ErrMalformedEvent)
	case event.Name != plan.EventFoundRoute && event.Name != plan.EventFailedFindRoute:
		return fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, event.Name)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = publishTime
	}

	if err := p.tracker.Track(ctx, &event); err != nil {
		return fmt.Errorf("storing event %s: %w", event.RunID, err)
	}
	return nil
}

// PubSubHandler receives plan events from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *EventProcessor
	processTimeout   time.Duration
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Receive          ReceiveConfig
	Processor        *EventProcessor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	receive := cfg.Receive.withDefaults()

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = receive.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = receive.MaxExtension

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		processTimeout:   receive.ProcessTimeout,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	ctx, cancel := context.WithTimeout(ctx, h.processTimeout)
	defer cancel()

	err := h.processor.Process(ctx, msg.Data, msg.PublishTime)
	switch {
	case err == nil:
		logger.Debug().
			Dur("duration", time.Since(startTime)).
			Msg("plan event stored")
		msg.Ack()
	case errors.Is(err, ErrMalformedEvent):
		// Ack so the message is not redelivered forever.
		logger.Error().Err(err).Msg("dropping malformed plan event")
		msg.Ack()
	default:
		logger.Warn().Err(err).Msg("failed to store plan event")
		msg.Nack()
	}
}
