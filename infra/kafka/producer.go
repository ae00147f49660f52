package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers one message and returns once the broker has
// acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// Client names a Publisher implementation.
const (
	ClientSarama  = "sarama"
	ClientKafkaGo = "kafka-go"
)

// New builds the publisher named by client.
func New(client string, brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	switch client {
	case ClientSarama:
		p, err := NewSaramaPublisher(brokers, topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ClientKafkaGo:
		return NewWriterPublisher(brokers, topic), nil
	}
	return nil, errors.Newf("kafka: unknown client %q", client)
}

// WriterPublisher publishes through a synchronous kafka-go Writer.
type WriterPublisher struct {
	writer *kafka.Writer
}

func NewWriterPublisher(brokers []string, topic string) *WriterPublisher {
	return &WriterPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *WriterPublisher) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	return errors.Wrap(err, "kafka-go write")
}

func (p *WriterPublisher) Close() error {
	return p.writer.Close()
}
