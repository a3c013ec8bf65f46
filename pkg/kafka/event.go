package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix namespaces every topic and event source of this service.
const TopicPrefix = "accounts"

// Topic builds a topic name such as "accounts.user.registered".
func Topic(aggregate, action string) string {
	return TopicPrefix + "." + aggregate + "." + action
}

// Event is the envelope shared by every message this service publishes.
// EventType is "<aggregate_type>.<action>".
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventOption customizes an Event built by NewEvent.
type EventOption func(*Event)

// WithCorrelationID ties the event to the request that caused it. An empty id
// leaves the event uncorrelated.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithMetadata adds a key-value pair to the event metadata.
func WithMetadata(key, value string) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		e.Metadata[key] = value
	}
}

// NewEvent wraps data in an envelope for the aggregate identified by
// aggregateType and aggregateID.
func NewEvent(aggregateType, action, aggregateID string, data any, opts ...EventOption) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	e := &Event{
		EventID:       uuid.New().String(),
		EventType:     aggregateType + "." + action,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        TopicPrefix,
		Data:          dataBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Topic returns the topic the event is published to.
func (e *Event) Topic() string {
	return TopicPrefix + "." + e.EventType
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
