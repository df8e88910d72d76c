// Package events publishes processing outcomes to a message broker.
//
// Every processed message becomes one JSON [Event]. Publishers implement
// processor.Sink so they plug into the pipeline next to persistence.
// Supported backends are Kafka (segmentio/kafka-go) and NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
)

// EventType names the only event published.
const EventType = "iso20022.message.processed"

// ContentTypeJSON is attached to published events.
const ContentTypeJSON = "application/json"

// Event describes one processed message.
type Event struct {
	EventID          string    `json:"eventId"`
	Type             string    `json:"type"`
	MessageID        string    `json:"messageId"`
	MessageType      string    `json:"messageType"`
	Family           string    `json:"family"`
	Status           string    `json:"status"`
	ErrorCount       int       `json:"errorCount"`
	ErrorCodes       []string  `json:"errorCodes,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	ResponseID       string    `json:"responseId,omitempty"`
	ResponseType     string    `json:"responseType,omitempty"`
	ResponseStatus   string    `json:"responseStatus,omitempty"`
	ReceivedAt       time.Time `json:"receivedAt"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

// NewEvent builds the event of an outcome.
func NewEvent(o *processor.Outcome) *Event {
	res := o.Result
	ev := &Event{
		EventID:          uuid.NewString(),
		Type:             EventType,
		MessageID:        res.MessageID,
		MessageType:      res.MessageType,
		Family:           o.Context.Family().Prefix(),
		Status:           res.Status.String(),
		ErrorCount:       len(res.Errors),
		Warnings:         res.Warnings,
		ReceivedAt:       o.ReceivedAt.UTC(),
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	}
	for _, e := range res.Errors {
		ev.ErrorCodes = append(ev.ErrorCodes, e.Code)
	}
	if o.Response != nil {
		ev.ResponseID = o.Response.ID
		ev.ResponseType = o.Response.MessageType
		ev.ResponseStatus = o.Response.Status
	}
	return ev
}

// Publisher sends outcome events. Handle satisfies processor.Sink.
type Publisher interface {
	Handle(ctx context.Context, o *processor.Outcome) error
	Close() error
}

// New creates the publisher selected by cfg.Backend.
func New(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "kafka":
		return NewKafkaPublisher(KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
	case "nats":
		return NewNATSPublisher(NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Handle(context.Context, *processor.Outcome) error { return nil }
func (Nop) Close() error                                     { return nil }

func encode(o *processor.Outcome) (*Event, []byte, error) {
	ev := NewEvent(o)
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	return ev, data, nil
}
