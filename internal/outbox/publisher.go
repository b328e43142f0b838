package outbox

import (
	"log"

	"github.com/argom2011/TangoWEB/internal/messaging/kafka"
)

// NewPublisher returns a Kafka producer when brokers are configured and a
// LogPublisher otherwise. The returned func releases the publisher.
func NewPublisher(brokers []string, logger *log.Logger) (Publisher, func() error) {
	if len(brokers) == 0 {
		if logger != nil {
			logger.Printf("WARN: KAFKA_BROKERS not set, outbox events are only logged")
		}
		return LogPublisher{Logger: logger}, func() error { return nil }
	}
	producer := kafka.NewProducer(brokers)
	return producer, producer.Close
}
