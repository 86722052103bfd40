package mqttws

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDefaultOptions(t *testing.T) {
	o := applyOptions()

	assert.Equal(t, 2*time.Second, o.timeout)
	assert.Equal(t, time.Second, o.initialReconnectDelay)
	assert.Equal(t, 32*time.Second, o.maxReconnectDelay)
	assert.InDelta(t, 0.5, o.reconnectJitter, 1e-9)
	assert.True(t, o.autoReconnect)
	assert.Zero(t, o.requestTimeout)
	assert.IsType(t, &NoOpLogger{}, o.logger)
	assert.IsType(t, &NoOpMetrics{}, o.metrics)
	assert.Equal(t, DefaultMaxPacketSize, o.maxPacketSize)
	assert.Zero(t, o.publishRate)
}

func TestOptions(t *testing.T) {
	logger := NewStdLogger(nil, LogLevelInfo)
	metrics := NewMemoryMetrics()

	o := applyOptions(
		WithTimeout(5*time.Second),
		WithTimeout(0),
		WithInitialReconnectDelay(10*time.Millisecond),
		WithMaxReconnectDelay(time.Second),
		WithReconnectJitter(3),
		WithAutoReconnect(false),
		WithRequestTimeout(time.Minute),
		WithLogger(logger),
		WithLogger(nil),
		WithMetrics(metrics),
		WithHeader(http.Header{"Authorization": {"Bearer a"}}),
		WithHeader(http.Header{"Authorization": {"Bearer b"}, "X-Id": {"1"}}),
		WithWriteTimeout(3*time.Second),
		WithMaxPacketSize(1<<30),
		WithOnEvent(func(Event) {}),
		WithOnEvent(nil),
		WithPublishRateLimit(50, 0),
	)

	assert.Equal(t, 5*time.Second, o.timeout)
	assert.Equal(t, 10*time.Millisecond, o.initialReconnectDelay)
	assert.Equal(t, time.Second, o.maxReconnectDelay)
	assert.InDelta(t, 1.0, o.reconnectJitter, 1e-9)
	assert.False(t, o.autoReconnect)
	assert.Equal(t, time.Minute, o.requestTimeout)
	assert.Same(t, logger, o.logger)
	assert.Same(t, metrics, o.metrics)
	assert.Equal(t, []string{"Bearer a", "Bearer b"}, o.header.Values("Authorization"))
	assert.Equal(t, "1", o.header.Get("X-Id"))
	assert.Equal(t, 3*time.Second, o.writeTimeout)
	assert.Equal(t, uint32(maxVarint+5), o.maxPacketSize)
	assert.Len(t, o.onEvent, 1)
	assert.Equal(t, rate.Limit(50), o.publishRate)
	assert.Equal(t, 1, o.publishBurst)

	assert.InDelta(t, 0.0, applyOptions(WithReconnectJitter(-1)).reconnectJitter, 1e-9)
}

func TestBuildDialer(t *testing.T) {
	t.Run("custom dialer wins", func(t *testing.T) {
		custom := DialerFunc(func(context.Context, string) (Conn, error) { return nil, nil })
		o := applyOptions(WithDialer(custom), WithProxy("ftp://bad", "", ""))

		d, err := o.buildDialer("ws://broker")
		require.NoError(t, err)
		assert.NotNil(t, d)
		_, isWS := d.(*WSDialer)
		assert.False(t, isWS)
	})

	t.Run("websocket with header", func(t *testing.T) {
		o := applyOptions(WithHeader(http.Header{"X-Id": {"1"}}), WithWriteTimeout(time.Second))

		d, err := o.buildDialer("ws://broker")
		require.NoError(t, err)
		ws, ok := d.(*WSDialer)
		require.True(t, ok)
		assert.Equal(t, "1", ws.Header.Get("X-Id"))
		assert.Equal(t, time.Second, ws.WriteTimeout)
		assert.Nil(t, ws.Dialer.NetDialContext)
	})

	t.Run("proxy", func(t *testing.T) {
		o := applyOptions(WithProxy("socks5://127.0.0.1:1080", "u", "p"))

		d, err := o.buildDialer("ws://broker")
		require.NoError(t, err)
		ws := d.(*WSDialer)
		assert.NotNil(t, ws.Dialer.NetDialContext)
		assert.Nil(t, ws.Dialer.Proxy)
	})

	t.Run("bad proxy scheme", func(t *testing.T) {
		o := applyOptions(WithProxy("ftp://127.0.0.1:21", "", ""))

		_, err := o.buildDialer("ws://broker")
		assert.ErrorIs(t, err, ErrUnsupportedProxyScheme)
	})

	t.Run("proxy from environment", func(t *testing.T) {
		t.Setenv("HTTPS_PROXY", "http://proxy.local:3128")
		t.Setenv("NO_PROXY", "")
		o := applyOptions(WithProxyFromEnvironment())

		d, err := o.buildDialer("wss://broker.example.com/mqtt")
		require.NoError(t, err)
		assert.NotNil(t, d.(*WSDialer).Dialer.NetDialContext)
	})
}
