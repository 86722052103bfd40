package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/mqttws"
)

// loopbackClient delivers every publish to its own subscriptions.
type loopbackClient struct {
	mu         sync.Mutex
	matcher    *mqttws.TopicMatcher
	connected  bool
	publishErr error
	subErr     error
	published  []*mqttws.Message
	unsubbed   []string
}

func newLoopbackClient() *loopbackClient {
	return &loopbackClient{matcher: mqttws.NewTopicMatcher(), connected: true}
}

func (c *loopbackClient) Subscribe(_ context.Context, pkt *mqttws.SubscribePacket, handler mqttws.MessageHandler) (*mqttws.SubackPacket, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]mqttws.ReasonCode, len(pkt.Subscriptions))
	for i, s := range pkt.Subscriptions {
		if err := c.matcher.Subscribe(s.TopicFilter, handler); err != nil {
			return nil, err
		}
		codes[i] = mqttws.ReasonCode(s.QoS)
	}
	return &mqttws.SubackPacket{PacketID: 1, ReasonCodes: codes}, nil
}

func (c *loopbackClient) Unsubscribe(_ context.Context, pkt *mqttws.UnsubscribePacket) (*mqttws.UnsubackPacket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range pkt.TopicFilters {
		c.unsubbed = append(c.unsubbed, f)
		_ = c.matcher.Unsubscribe(f)
	}
	return &mqttws.UnsubackPacket{PacketID: 1, ReasonCodes: []mqttws.ReasonCode{mqttws.ReasonSuccess}}, nil
}

func (c *loopbackClient) Publish(_ context.Context, msg *mqttws.Message) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.mu.Lock()
	c.published = append(c.published, msg.Clone())
	handlers, err := c.matcher.Match(msg.Topic)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	for _, h := range handlers {
		go h(msg.Clone())
	}
	return nil
}

func (c *loopbackClient) IsConnected() bool { return c.connected }

// echo answers requests on topic by publishing to their response topic.
func (c *loopbackClient) echo(t *testing.T, topic string, headers bool) {
	t.Helper()
	_, err := c.Subscribe(context.Background(), &mqttws.SubscribePacket{
		Subscriptions: []mqttws.Subscription{{TopicFilter: topic}},
	}, func(msg *mqttws.Message) {
		resp := &mqttws.Message{
			Topic:           msg.ResponseTopic,
			Payload:         append([]byte("echo: "), msg.Payload...),
			CorrelationData: msg.CorrelationData,
			ContentType:     msg.ContentType,
		}
		if headers {
			resp.UserProperties = msg.UserProperties
		}
		_ = c.Publish(context.Background(), resp)
	})
	require.NoError(t, err)
}

func TestNewHandler(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		h, err := NewHandler(context.Background(), nil, nil)
		assert.Nil(t, h)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("default response topic", func(t *testing.T) {
		h, err := NewHandler(context.Background(), newLoopbackClient(), nil)
		require.NoError(t, err)
		assert.Regexp(t, `^rpc/response/[0-9a-f]{16}$`, h.ResponseTopic())
	})

	t.Run("custom response topic", func(t *testing.T) {
		h, err := NewHandler(context.Background(), newLoopbackClient(), &HandlerOptions{
			ResponseTopic: "custom/response",
			QoS:           1,
		})
		require.NoError(t, err)
		assert.Equal(t, "custom/response", h.ResponseTopic())
	})

	t.Run("subscribe error", func(t *testing.T) {
		c := newLoopbackClient()
		c.subErr = mqttws.ErrNotConnected
		_, err := NewHandler(context.Background(), c, nil)
		assert.ErrorIs(t, err, mqttws.ErrNotConnected)
	})
}

func TestCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t.Run("request and response", func(t *testing.T) {
		c := newLoopbackClient()
		c.echo(t, "service/echo", false)

		h, err := NewHandler(ctx, c, nil)
		require.NoError(t, err)

		resp, err := h.Request(ctx, "service/echo", []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, []byte("echo: hello"), resp.Payload)
		assert.NotEmpty(t, resp.CorrelationData)
	})

	t.Run("headers and content type", func(t *testing.T) {
		c := newLoopbackClient()
		c.echo(t, "service/echo", true)

		h, err := NewHandler(ctx, c, &HandlerOptions{QoS: 1})
		require.NoError(t, err)

		resp, err := h.Call(ctx, "service/echo", &Request{
			Payload:     []byte("{}"),
			Headers:     Headers{"trace-id": "abc"},
			ContentType: "application/json",
		})
		require.NoError(t, err)
		assert.Equal(t, "abc", resp.Headers["trace-id"])
		assert.Equal(t, "application/json", resp.ContentType)

		require.NotEmpty(t, c.published)
		assert.Equal(t, byte(1), c.published[0].QoS)
		assert.Equal(t, h.ResponseTopic(), c.published[0].ResponseTopic)
	})

	t.Run("sequential calls use distinct correlation data", func(t *testing.T) {
		c := newLoopbackClient()
		c.echo(t, "service/echo", false)

		h, err := NewHandler(ctx, c, nil)
		require.NoError(t, err)

		seen := map[string]bool{}
		for range 5 {
			resp, err := h.Request(ctx, "service/echo", []byte("x"))
			require.NoError(t, err)
			seen[string(resp.CorrelationData)] = true
		}
		assert.Len(t, seen, 5)
	})

	t.Run("timeout without responder", func(t *testing.T) {
		h, err := NewHandler(ctx, newLoopbackClient(), nil)
		require.NoError(t, err)

		_, err = h.CallWithTimeout("nobody/home", nil, 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("disconnected client", func(t *testing.T) {
		c := newLoopbackClient()
		h, err := NewHandler(ctx, c, nil)
		require.NoError(t, err)

		c.connected = false
		_, err = h.Request(ctx, "service/echo", nil)
		assert.ErrorIs(t, err, ErrClientClosed)
	})

	t.Run("publish error", func(t *testing.T) {
		c := newLoopbackClient()
		h, err := NewHandler(ctx, c, nil)
		require.NoError(t, err)

		c.publishErr = errors.New("boom")
		_, err = h.Request(ctx, "service/echo", nil)
		assert.ErrorContains(t, err, "boom")
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("unsubscribes response topic", func(t *testing.T) {
		c := newLoopbackClient()
		h, err := NewHandler(ctx, c, nil)
		require.NoError(t, err)

		require.NoError(t, h.Close(ctx))
		assert.Equal(t, []string{h.ResponseTopic()}, c.unsubbed)
		require.NoError(t, h.Close(ctx))
		assert.Len(t, c.unsubbed, 1)
	})

	t.Run("fails pending calls", func(t *testing.T) {
		h, err := NewHandler(ctx, newLoopbackClient(), nil)
		require.NoError(t, err)

		errCh := make(chan error, 1)
		go func() {
			_, err := h.CallWithTimeout("nobody/home", nil, 2*time.Second)
			errCh <- err
		}()

		require.Eventually(t, func() bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			return len(h.waiting) == 1
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, h.Close(ctx))
		assert.ErrorIs(t, <-errCh, ErrHandlerClosed)
	})

	t.Run("calls after close", func(t *testing.T) {
		h, err := NewHandler(ctx, newLoopbackClient(), nil)
		require.NoError(t, err)
		require.NoError(t, h.Close(ctx))

		_, err = h.Request(ctx, "service/echo", nil)
		assert.ErrorIs(t, err, ErrHandlerClosed)
	})
}

func TestHandleResponseIgnoresStrays(t *testing.T) {
	h, err := NewHandler(context.Background(), newLoopbackClient(), nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.handleResponse(nil)
		h.handleResponse(&mqttws.Message{Topic: h.ResponseTopic()})
		h.handleResponse(&mqttws.Message{Topic: h.ResponseTopic(), CorrelationData: []byte("unknown")})
	})
}
