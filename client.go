package mqttws

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Client is an MQTT v5 client over WebSocket. It reconnects on its own and
// resumes outstanding publishes and subscriptions on the new connection.
// All methods are safe for concurrent use.
type Client struct {
	url     string
	engine  *engine
	limiter *rate.Limiter
}

// New returns a client for the broker at url, for example
// "wss://broker.example.com/mqtt". Nothing is dialed until Connect.
// Close must be called to release the client's goroutines.
func New(url string, opts ...Option) *Client {
	options := applyOptions(opts...)

	c := &Client{
		url:    url,
		engine: newEngine(url, options),
	}
	if options.publishRate > 0 {
		c.limiter = rate.NewLimiter(options.publishRate, options.publishBurst)
	}
	return c
}

// Connect dials the broker and performs the CONNECT exchange. A nil packet
// connects with a clean start and a 60 second keep alive. Cancelling ctx
// aborts the attempt.
//
// Connect may be called once. After a connection loss the client
// reconnects by itself unless WithAutoReconnect(false) was given, in which
// case Connect may be called again.
func (c *Client) Connect(ctx context.Context, pkt *ConnectPacket) (*ConnackPacket, error) {
	if pkt == nil {
		pkt = &ConnectPacket{CleanStart: true, KeepAlive: 60}
	}
	if err := pkt.Validate(); err != nil {
		return nil, err
	}
	connect := *pkt

	waiter := make(chan result, 1)
	if !c.engine.post(func() { c.engine.start(&connect, waiter) }) {
		return nil, ErrClientClosed
	}

	select {
	case r := <-waiter:
		if r.err != nil {
			return nil, r.err
		}
		return r.packet.(*ConnackPacket), nil
	case <-ctx.Done():
		c.engine.post(func() { c.engine.abort(waiter, ctx.Err()) })
		r := <-waiter
		if r.err == nil {
			return r.packet.(*ConnackPacket), nil
		}
		return nil, r.err
	}
}

// Publish sends msg. QoS 0 returns once the message is written, or queued
// while reconnecting. QoS 1 and 2 return after the broker's acknowledgement.
// Cancelling ctx stops the wait; delivery still continues.
func (c *Client) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if err := validateMessage(msg); err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	m := msg.Clone()
	res := make(chan result, 1)
	if !c.engine.post(func() { c.engine.publish(m, res) }) {
		return ErrClientClosed
	}
	return c.engine.await(ctx, res).err
}

func validateMessage(msg *Message) error {
	if msg.QoS > 2 {
		return ErrInvalidQoS
	}
	if msg.Topic == "" {
		if msg.TopicAlias == 0 {
			return ErrTopicNameEmpty
		}
		return nil
	}
	return ValidateTopicName(msg.Topic)
}

// Subscribe sends pkt and routes matching messages to handler. The packet
// id is assigned by the client. When the broker refuses some filters the
// SUBACK is returned together with a *SubscribeError.
func (c *Client) Subscribe(ctx context.Context, pkt *SubscribePacket, handler MessageHandler) (*SubackPacket, error) {
	if pkt == nil || len(pkt.Subscriptions) == 0 {
		return nil, ErrNoSubscriptions
	}
	sub := pkt.Clone()
	sub.PacketID = 1
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	sub.PacketID = 0

	res := make(chan result, 1)
	if !c.engine.post(func() { c.engine.subscribe(sub, handler, res) }) {
		return nil, ErrClientClosed
	}

	r := c.engine.await(ctx, res)
	suback, _ := r.packet.(*SubackPacket)
	return suback, r.err
}

// Unsubscribe sends pkt. Handlers for its filters are removed at once.
func (c *Client) Unsubscribe(ctx context.Context, pkt *UnsubscribePacket) (*UnsubackPacket, error) {
	if pkt == nil || len(pkt.TopicFilters) == 0 {
		return nil, ErrNoTopicFilters
	}
	for _, filter := range pkt.TopicFilters {
		if err := ValidateTopicFilter(filter); err != nil {
			return nil, fmt.Errorf("%w: %q", err, filter)
		}
	}
	unsub := &UnsubscribePacket{
		TopicFilters:   append([]string(nil), pkt.TopicFilters...),
		UserProperties: append([]StringPair(nil), pkt.UserProperties...),
	}

	res := make(chan result, 1)
	if !c.engine.post(func() { c.engine.unsubscribe(unsub, res) }) {
		return nil, ErrClientClosed
	}

	r := c.engine.await(ctx, res)
	unsuback, _ := r.packet.(*UnsubackPacket)
	return unsuback, r.err
}

// Disconnect sends DISCONNECT when connected, closes the transport and
// fails every outstanding request with ErrClientClosed. A nil packet means
// Normal Disconnection. Calling it again does nothing.
func (c *Client) Disconnect(pkt *DisconnectPacket) {
	if pkt == nil {
		pkt = &DisconnectPacket{ReasonCode: ReasonNormalDisconnection}
	}

	done := make(chan struct{})
	if !c.engine.post(func() {
		c.engine.disconnect(pkt)
		close(done)
	}) {
		return
	}
	<-done
}

// Close disconnects normally.
func (c *Client) Close() error {
	c.Disconnect(nil)
	return nil
}

// Events returns a channel receiving every event emitted from now on. The
// channel is closed after Disconnect. Events not received within five
// seconds of Disconnect are dropped.
func (c *Client) Events() <-chan Event {
	return c.engine.notify.subscribe()
}

// Statistics returns the traffic counters.
func (c *Client) Statistics() Statistics {
	return c.engine.stats.snapshot()
}

// SubscriptionCache returns copies of the subscriptions the client
// believes are active, as replayed after a session loss.
func (c *Client) SubscriptionCache() []*SubscribePacket {
	ch := make(chan []*SubscribePacket, 1)
	if c.engine.post(func() { ch <- c.engine.subscriptionCache() }) {
		return <-ch
	}
	<-c.engine.done
	return c.engine.subscriptionCache()
}

// URL returns the broker address.
func (c *Client) URL() string {
	return c.url
}

// State returns the connection state.
func (c *Client) State() State {
	return State(c.engine.publicState.Load())
}

// IsConnected reports whether a CONNACK was received on the current
// connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// IsClosed reports whether Disconnect was called.
func (c *Client) IsClosed() bool {
	return c.State() == StateDisconnected
}
