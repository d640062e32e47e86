// ABOUTME: Tests for the websocket transport against a local server
// ABOUTME: Covers bearer auth and malformed-frame skipping

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushServer accepts one websocket connection and writes the given
// frames to it. The returned func reports the Authorization header the
// handshake carried.
func pushServer(t *testing.T, frames ...string) (*httptest.Server, func() string) {
	t.Helper()
	var mu sync.Mutex
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for _, f := range frames {
			if err := ws.Write(r.Context(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection open until the client is done
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return auth
	}
}

func TestWSTransport_DialSendsBearerToken(t *testing.T) {
	srv, auth := pushServer(t, `{"event": "new_message", "id": "1"}`)

	transport := &WSTransport{URL: srv.URL}
	conn, err := transport.Dial(context.Background(), "tok-123")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", auth())
}

func TestWSTransport_SkipsMalformedFrames(t *testing.T) {
	srv, _ := pushServer(t,
		`{not json`,
		`{"event": "new_message", "id": "good", "conversationId": 42}`,
	)

	transport := &WSTransport{URL: srv.URL}
	conn, err := transport.Dial(context.Background(), "tok")
	require.NoError(t, err)
	defer conn.Close()

	// The malformed frame is absorbed; the next good one comes through
	event, err := conn.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, event.Type)
	assert.Equal(t, "good", event.ID)
	assert.Equal(t, "42", event.ThreadID)
}
