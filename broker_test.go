package mqttws

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testWait = 5 * time.Second

// mockBroker hands every accepted WebSocket connection to the test, which
// then plays the broker side packet by packet.
type mockBroker struct {
	server *httptest.Server
	conns  chan *brokerConn
	done   chan struct{}
}

func newMockBroker(t *testing.T) *mockBroker {
	t.Helper()

	b := &mockBroker{
		conns: make(chan *brokerConn),
		done:  make(chan struct{}),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{WebSocketSubprotocol}}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case b.conns <- &brokerConn{conn: conn}:
		case <-b.done:
			conn.Close()
		}
	}))
	t.Cleanup(func() {
		close(b.done)
		b.server.Close()
	})
	return b
}

func (b *mockBroker) url() string {
	return wsURL(b.server)
}

func (b *mockBroker) accept(t *testing.T) *brokerConn {
	t.Helper()

	select {
	case c := <-b.conns:
		t.Cleanup(c.close)
		return c
	case <-time.After(testWait):
		t.Fatal("client did not connect")
		return nil
	}
}

type brokerConn struct {
	conn *websocket.Conn
}

func (c *brokerConn) read(t *testing.T) Packet {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(testWait)))
	typ, data, err := c.conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)

	pkt, n, err := ReadPacket(bytes.NewReader(data), 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n, "one packet per message")
	return pkt
}

func (c *brokerConn) send(t *testing.T, pkt Packet) {
	t.Helper()

	data, err := EncodePacket(pkt)
	require.NoError(t, err)
	c.sendRaw(t, data)
}

func (c *brokerConn) sendRaw(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, c.conn.WriteMessage(websocket.BinaryMessage, data))
}

func (c *brokerConn) close() {
	c.conn.Close()
}

// handshake reads the CONNECT and answers with connack.
func (c *brokerConn) handshake(t *testing.T, connack *ConnackPacket) *ConnectPacket {
	t.Helper()

	connect := expectPacket[*ConnectPacket](t, c)
	c.send(t, connack)
	return connect
}

func expectPacket[T Packet](t *testing.T, c *brokerConn) T {
	t.Helper()

	pkt := c.read(t)
	p, ok := pkt.(T)
	require.Truef(t, ok, "expected %T, got %T", *new(T), pkt)
	return p
}

// connectClient runs Connect against b and completes the handshake.
func connectClient(t *testing.T, b *mockBroker, c *Client, pkt *ConnectPacket, connack *ConnackPacket) *brokerConn {
	t.Helper()

	errc := async(func() error {
		_, err := c.Connect(context.Background(), pkt)
		return err
	})
	bc := b.accept(t)
	bc.handshake(t, connack)
	require.NoError(t, waitErr(t, errc))
	return bc
}

func async(fn func() error) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()

	select {
	case err := <-errc:
		return err
	case <-time.After(testWait):
		t.Fatal("call did not return")
		return nil
	}
}

// watchEvents forwards every event except log lines.
func watchEvents(c *Client) <-chan Event {
	out := make(chan Event, 64)
	events := c.Events()
	go func() {
		defer close(out)
		for ev := range events {
			if _, ok := ev.(LogEvent); ok {
				continue
			}
			out <- ev
		}
	}()
	return out
}

func expectEvent[T Event](t *testing.T, events <-chan Event) T {
	t.Helper()

	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		e, ok := ev.(T)
		require.Truef(t, ok, "expected %T, got %T", *new(T), ev)
		return e
	case <-time.After(testWait):
		t.Fatalf("no %T", *new(T))
		var zero T
		return zero
	}
}

func collectMessages(buffer int) (chan *Message, MessageHandler) {
	ch := make(chan *Message, buffer)
	return ch, func(msg *Message) { ch <- msg }
}

func expectMessage(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(testWait):
		t.Fatal("message not delivered")
		return nil
	}
}

func subscribeClient(t *testing.T, c *Client, bc *brokerConn, filter string, handler MessageHandler) {
	t.Helper()

	errc := async(func() error {
		_, err := c.Subscribe(context.Background(), &SubscribePacket{
			Subscriptions: []Subscription{{TopicFilter: filter, QoS: 1}},
		}, handler)
		return err
	})
	sub := expectPacket[*SubscribePacket](t, bc)
	require.Equal(t, []string{filter}, sub.Filters())
	bc.send(t, &SubackPacket{PacketID: sub.PacketID, ReasonCodes: []ReasonCode{ReasonGrantedQoS1}})
	require.NoError(t, waitErr(t, errc))
}
