package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	p, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o1"}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", p.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestHeader(t *testing.T) {
	hs := []kafka.Header{{Key: "x-event-type", Value: []byte("OrderCreated")}, {Key: "x-event-version", Value: []byte("1")}}
	assert.Equal(t, "OrderCreated", Header(hs, "x-event-type"))
	assert.Equal(t, "1", Header(hs, "x-event-version"))
	assert.Empty(t, Header(hs, "missing"))
}

func TestMustMarshalPanicsOnUnsupported(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(MustMarshal(map[string]int{"a": 1})))
	assert.Panics(t, func() { MustMarshal(make(chan int)) })
}
