package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"event_id": "EVT_123",
		"type": "checkout.session.completed",
		"data": {"session_id": "SES_9", "attempt_id": "ATT_7"}
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "EVT_123", ev.EventID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "SES_9", ev.Data.SessionID)
	assert.Equal(t, "ATT_7", ev.Data.AttemptID)
	assert.True(t, ev.Known())
}

func TestParseEventUnknownType(t *testing.T) {
	payload := []byte(`{"event_id": "EVT_1", "type": "charge.refunded", "data": {}}`)

	// Unknown kinds parse fine; consumers no-op them rather than erroring
	ev, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.False(t, ev.Known())
}

func TestParseEventMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{}`),
		[]byte(`{"event_id": "EVT_1"}`),
		[]byte(`{"type": "checkout.session.completed"}`),
	}
	for _, payload := range cases {
		_, err := ParseEvent(payload)
		assert.ErrorIs(t, err, ErrMalformedEvent, "payload %s", payload)
	}
}
