package kafka

import (
	"testing"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestToMessage(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := toMessage(domain.OutboxMessage{
		Seq:       7,
		EventID:   "evt-1",
		Topic:     "orders.confirmed",
		Key:       "order-1",
		Payload:   []byte(`{"orderId":"order-1"}`),
		CreatedAt: at,
	})

	assert.Equal(t, "orders.confirmed", msg.Topic)
	assert.Equal(t, []byte("order-1"), msg.Key)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msg.Value))
	assert.Equal(t, at, msg.Time)
	if assert.Len(t, msg.Headers, 1) {
		assert.Equal(t, "event_id", msg.Headers[0].Key)
		assert.Equal(t, []byte("evt-1"), msg.Headers[0].Value)
	}

	assert.False(t, toMessage(domain.OutboxMessage{Topic: "t"}).Time.IsZero())
}
