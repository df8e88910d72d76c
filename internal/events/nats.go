package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/sirosfoundation/go-iso20022/pkg/processor"
)

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL string
	// Subject is the base subject; the message family is appended,
	// e.g. "iso20022.outcomes.pacs.008".
	Subject string
}

type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATSPublisher publishes events on per-family subjects.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, errors.New("nats: subject is required")
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.Name("go-iso20022"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return newNATSPublisher(conn, cfg.Subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// Subject returns the subject events of family are published on.
func (p *NATSPublisher) Subject(family string) string {
	return p.subject + "." + family
}

// Handle publishes the outcome event.
func (p *NATSPublisher) Handle(ctx context.Context, o *processor.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev, data, err := encode(o)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.Subject(ev.Family))
	msg.Data = data
	msg.Header.Set("Content-Type", ContentTypeJSON)
	msg.Header.Set(nats.MsgIdHdr, ev.EventID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		"backend", "nats",
		"subject", msg.Subject,
		"message_id", ev.MessageID,
	)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
