// ABOUTME: Transport abstraction for the push channel plus the
// ABOUTME: websocket implementation built on coder/websocket

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one established push-channel connection.
type Conn interface {
	// ReadEvent blocks until the next frame arrives, in delivery order.
	ReadEvent(ctx context.Context) (*Event, error)
	Close() error
}

// Transport dials push-channel connections. The Gateway treats it as
// opaque so tests can drive the event loop with a fake.
type Transport interface {
	Dial(ctx context.Context, credential string) (Conn, error)
}

// WSTransport dials a websocket push channel with bearer auth. Pass
// nil Logger for default.
type WSTransport struct {
	URL    string
	Logger *slog.Logger
}

// Dial establishes the websocket and performs the auth handshake.
func (t *WSTransport) Dial(ctx context.Context, credential string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	ws, _, err := websocket.Dial(ctx, t.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &wsConn{ws: ws, logger: logger.With("component", "transport")}, nil
}

type wsConn struct {
	ws     *websocket.Conn
	logger *slog.Logger
}

// ReadEvent returns the next decodable frame. A frame that fails to
// decode is logged and skipped; only transport failures surface as
// errors, so one malformed frame cannot tear the connection down.
func (c *wsConn) ReadEvent(ctx context.Context) (*Event, error) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading push frame: %w", err)
		}
		event, err := DecodeFrame(data)
		if err != nil {
			c.logger.Warn("skipping undecodable push frame", "error", err)
			continue
		}
		return event, nil
	}
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
