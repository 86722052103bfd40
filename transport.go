package mqttws

import (
	"context"
	"errors"
)

// ErrUnexpectedMessageType is returned when the peer sends a text frame.
var ErrUnexpectedMessageType = errors.New("websocket: expected binary message")

// Conn is a duplex message channel. Message boundaries do not have to line
// up with MQTT packets; the client reassembles frames itself.
//
// ReadMessage is called from one goroutine and WriteMessage from another.
// Close may be called concurrently with both.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn to the broker at url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
