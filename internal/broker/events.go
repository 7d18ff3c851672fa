package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"closet-service/internal/models"
	"closet-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventProducer is the write side of a topic.
type EventProducer interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer EventProducer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventProducer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishLedgerEvent publishes a ledger event keyed by its order.
func (ep *EventPublisher) PublishLedgerEvent(ctx context.Context, event *models.LedgerEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// ErrMalformedEvent marks a message that cannot be decoded. Retrying it
// cannot succeed.
var ErrMalformedEvent = errors.New("malformed event")

// EventHandler handles incoming events
type EventHandler struct {
	onLedgerEvent func(context.Context, *models.LedgerEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnLedgerEvent registers a handler for every ledger event type
func (eh *EventHandler) OnLedgerEvent(handler func(context.Context, *models.LedgerEvent) error) {
	eh.onLedgerEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeItemsAdded,
		models.EventTypeItemsRemoved,
		models.EventTypeOrderCreated,
		models.EventTypeOrderExecuted,
		models.EventTypeOrderLate,
		models.EventTypeOrderCompleted,
		models.EventTypeOrderCancelled:
		if eh.onLedgerEvent != nil {
			var event models.LedgerEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: failed to unmarshal %s event: %v", ErrMalformedEvent, baseEvent.EventType, err)
			}
			return eh.onLedgerEvent(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
