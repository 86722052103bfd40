package mqttws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is negotiated on every handshake.
const WebSocketSubprotocol = "mqtt"

const (
	wsBufferSize   = 4096
	wsCloseTimeout = time.Second
)

// WSDialer connects to brokers over WebSocket.
type WSDialer struct {
	// Dialer is the underlying websocket dialer. The mqtt subprotocol is
	// always requested regardless of its Subprotocols field.
	Dialer *websocket.Dialer

	// Header is sent with the opening handshake.
	Header http.Header

	// WriteTimeout bounds each WriteMessage. Zero means no deadline.
	WriteTimeout time.Duration
}

// NewWSDialer returns a dialer with default buffer sizes.
func NewWSDialer() *WSDialer {
	return &WSDialer{
		Dialer: &websocket.Dialer{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
		},
	}
}

// WithNetDialContext makes the dialer open its TCP connection through fn.
func (d *WSDialer) WithNetDialContext(fn func(ctx context.Context, network, addr string) (net.Conn, error)) *WSDialer {
	dialer := d.websocketDialer()
	dialer.NetDialContext = fn
	dialer.Proxy = nil
	d.Dialer = dialer
	return d
}

func (d *WSDialer) websocketDialer() *websocket.Dialer {
	var dialer websocket.Dialer
	if d.Dialer != nil {
		dialer = *d.Dialer
	} else {
		dialer = *websocket.DefaultDialer
	}
	dialer.Subprotocols = []string{WebSocketSubprotocol}
	return &dialer
}

// Dial performs the websocket handshake.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	conn, resp, err := d.websocketDialer().DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	if proto := conn.Subprotocol(); proto != "" && proto != WebSocketSubprotocol {
		conn.Close()
		return nil, fmt.Errorf("websocket dial %s: server selected subprotocol %q", url, proto)
	}

	return newWSConn(conn, d.WriteTimeout), nil
}

// wsConn carries MQTT bytes in binary websocket messages.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, ErrUnexpectedMessageType
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a normal-closure frame and closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
