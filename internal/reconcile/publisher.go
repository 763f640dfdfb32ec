package reconcile

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers a session's difference to the catalog screen.
type Publisher interface {
	Publish(ctx context.Context, d Difference) error
}

// NopPublisher discards every difference.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Difference) error { return nil }

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes differences to a Kafka topic, keyed by difference ID
// so that redeliveries of one payload land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func newKafkaPublisherWith(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, d Difference) error {
	var e jx.Encoder
	d.Encode(&e)
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.ID.String()),
		Value: e.Bytes(),
	}); err != nil {
		return errors.Wrapf(err, "publish difference %s", d.ID)
	}
	return nil
}

// Close flushes and closes the underlying writer when it supports it.
func (p *KafkaPublisher) Close() error {
	if c, ok := p.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Multi publishes to every publisher in order, stopping at the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, d Difference) error {
	for _, p := range m {
		if err := p.Publish(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
