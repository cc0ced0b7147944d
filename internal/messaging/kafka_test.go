package messaging

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestFromKafkaCopiesPayloadAndHeaders(t *testing.T) {
	key, value := []byte("casbah-42"), []byte(`{"id":42}`)
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	msg := fromKafka(kafka.Message{
		Topic:   "menudesk.receipts",
		Key:     key,
		Value:   value,
		Offset:  7,
		Time:    at,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("receipt.print")}},
	})
	key[0], value[0] = 'X', 'X'

	assert.Equal(t, "casbah-42", string(msg.Key))
	assert.Equal(t, `{"id":42}`, string(msg.Value))
	assert.Equal(t, "receipt.print", msg.EventType())
	assert.Equal(t, int64(7), msg.Offset)
	assert.Equal(t, at, msg.Time)

	assert.Nil(t, fromKafka(kafka.Message{}).Headers)
}
