package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes house events through kafka-go.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
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

// NewProducerWithWriter wraps a preconfigured writer.
func NewProducerWithWriter(w *kafka.Writer) *Producer {
	return &Producer{writer: w}
}

// Publish writes one message synchronously. Messages with the same key
// land on the same partition, so one auction's events stay ordered.
func (p *Producer) Publish(
	ctx context.Context,
	key []byte,
	value []byte,
	headers map[string]string,
) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
