package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sirosfoundation/go-iso20022/pkg/processor"
)

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by message id.
type KafkaPublisher struct {
	writer  kafkaWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(writer, cfg.WriteTimeout, logger), nil
}

func newKafkaPublisher(w kafkaWriter, timeout time.Duration, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: w, timeout: timeout, logger: logger}
}

// Handle publishes the outcome event.
func (p *KafkaPublisher) Handle(ctx context.Context, o *processor.Outcome) error {
	ev, data, err := encode(o)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(ev.MessageID),
		Value: data,
		Time:  ev.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(ContentTypeJSON)},
			{Key: "event-type", Value: []byte(ev.Type)},
			{Key: "message-type", Value: []byte(ev.MessageType)},
		},
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		"backend", "kafka",
		"message_id", ev.MessageID,
		"event_id", ev.EventID,
	)
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
