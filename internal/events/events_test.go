package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/response"
)

func outcome() *processor.Outcome {
	mc := message.NewContext(nil, nil)
	mc.MessageID = "MSG-1"
	mc.MessageType = "pain.001.001.09"

	return &processor.Outcome{
		Context: mc,
		Result: &message.ProcessingResult{
			MessageID:   "MSG-1",
			MessageType: "pain.001.001.09",
			Status:      message.StatusError,
			Errors: []message.ValidationError{
				message.BusinessRuleError("INVALID_AMOUNT_VALUE", "Amount must be positive", "InstdAmt", "-1"),
			},
			ProcessingTime: 7 * time.Millisecond,
		},
		Response: &response.Response{
			ID:          "SIM0123456789AB",
			MessageType: response.TypeCustomerPaymentStatusReport,
			Status:      "RJCT",
		},
		ReceivedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(outcome())

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, EventType, ev.Type)
	assert.Equal(t, "pain.001", ev.Family)
	assert.Equal(t, "ERROR", ev.Status)
	assert.Equal(t, 1, ev.ErrorCount)
	assert.Equal(t, []string{"INVALID_AMOUNT_VALUE"}, ev.ErrorCodes)
	assert.Equal(t, "RJCT", ev.ResponseStatus)
	assert.Equal(t, int64(7), ev.ProcessingTimeMs)

	o := outcome()
	o.Response = nil
	assert.Empty(t, NewEvent(o).ResponseID)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a write deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Handle(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, time.Second, nil)

	require.NoError(t, p.Handle(context.Background(), outcome()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "MSG-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "content-type", Value: []byte(ContentTypeJSON)})

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "MSG-1", ev.MessageID)
	assert.Equal(t, "pain.001.001.09", ev.MessageType)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("broker unavailable")}, time.Second, nil)
	assert.ErrorContains(t, p.Handle(context.Background(), outcome()), "broker unavailable")
}

func TestNewKafkaPublisher_Config(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "iso20022.outcomes"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, p.timeout)
	assert.NoError(t, p.Close())
}

type fakeConn struct {
	msgs    []*nats.Msg
	err     error
	drained bool
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisher_Handle(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "iso20022.outcomes", nil)

	require.NoError(t, p.Handle(context.Background(), outcome()))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "iso20022.outcomes.pain.001", msg.Subject)
	assert.Equal(t, ContentTypeJSON, msg.Header.Get("Content-Type"))
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "ERROR", ev.Status)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := newNATSPublisher(&fakeConn{err: nats.ErrConnectionClosed}, "s", nil)
	assert.ErrorIs(t, p.Handle(context.Background(), outcome()), nats.ErrConnectionClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newNATSPublisher(&fakeConn{}, "s", nil).Handle(ctx, outcome()), context.Canceled)

	_, err := NewNATSPublisher(NATSConfig{URL: "nats://localhost:4222"}, nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(config.EventsConfig{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Handle(context.Background(), outcome()))
	assert.NoError(t, p.Close())

	var kafkaCfg config.EventsConfig
	kafkaCfg.Backend = "kafka"
	kafkaCfg.Kafka.Brokers = []string{"localhost:9092"}
	kafkaCfg.Kafka.Topic = "outcomes"
	p, err = New(kafkaCfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	_ = p.Close()

	_, err = New(config.EventsConfig{Backend: "amqp"}, nil)
	assert.Error(t, err)
}
