package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventVersion = "1.0.0"

	TypeRestaurantCreated  = "restaurant.created"
	TypeRestaurantUpdated  = "restaurant.updated"
	TypeRestaurantDeleted  = "restaurant.deleted"
	TypeReservationCreated = "reservation.created"
	TypeReservationUpdated = "reservation.updated"
	TypeReservationDeleted = "reservation.deleted"
)

// Event is the envelope published for every committed write.
type Event struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	EventVersion  string                 `json:"event_version"`
	Timestamp     string                 `json:"timestamp"`
	AggregateID   string                 `json:"aggregate_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
}

func NewEvent(ctx context.Context, eventType, aggregateID string, payload map[string]interface{}) Event {
	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		AggregateID:   aggregateID,
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Healthy() bool
	Close() error
}

type correlationKey struct{}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NopPublisher drops events; used when EVENTS_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Healthy() bool { return true }
func (NopPublisher) Close() error { return nil }
