// ABOUTME: Tests for push frame decoding and dedupe keys
// ABOUTME: Covers numeric ids and payload passthrough

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley/internal/api"
)

func TestDecodeFrame_NewMessage(t *testing.T) {
	frame := []byte(`{
		"event": "new_message",
		"id": 4711,
		"conversationId": "t9",
		"data": {"id": "m1", "conversationId": "t9", "sender": {"id": 7}, "message": "hi"}
	}`)

	e, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, e.Type)
	assert.Equal(t, "4711", e.ID)
	assert.Equal(t, "t9", e.ThreadID)

	m, err := api.DecodeMessage(e.Payload)
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Text)
}

func TestDecodeFrame_LifecycleWithoutPayload(t *testing.T) {
	e, err := DecodeFrame([]byte(`{"event": "reconnect"}`))
	require.NoError(t, err)
	assert.Equal(t, EventReconnect, e.Type)
	assert.Empty(t, e.ID)
	assert.Empty(t, e.DedupeKey())
}

func TestEvent_DedupeKeyDistinguishesTypes(t *testing.T) {
	a := &Event{Type: EventNewMessage, ID: "1"}
	b := &Event{Type: EventNotification, ID: "1"}
	assert.NotEqual(t, a.DedupeKey(), b.DedupeKey())
}
