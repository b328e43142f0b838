package kafka

import (
	"context"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Producer publishes outbox messages. Messages with the same key (the order
// id) land on the same partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	return p.writer.WriteMessages(ctx, toMessage(msg))
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func toMessage(msg domain.OutboxMessage) kafka.Message {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.EventID)},
		},
	}
}
