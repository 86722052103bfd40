package mqttws

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the connection and reconnection timings.
const (
	DefaultTimeout               = 2000 * time.Millisecond
	DefaultInitialReconnectDelay = 1000 * time.Millisecond
	DefaultMaxReconnectDelay     = 32000 * time.Millisecond
	DefaultReconnectJitter       = 0.5

	// DefaultMaxPacketSize bounds inbound packets when the CONNECT packet
	// does not set Maximum Packet Size.
	DefaultMaxPacketSize uint32 = 4 * 1024 * 1024
)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	timeout               time.Duration
	initialReconnectDelay time.Duration
	maxReconnectDelay     time.Duration
	reconnectJitter       float64
	autoReconnect         bool
	requestTimeout        time.Duration

	logger  Logger
	metrics Metrics

	dialer       Dialer
	header       http.Header
	writeTimeout time.Duration
	proxyURL     string
	proxyUser    string
	proxyPass    string
	proxyFromEnv bool

	maxPacketSize uint32
	onEvent       []EventHandler

	publishRate  rate.Limit
	publishBurst int
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		timeout:               DefaultTimeout,
		initialReconnectDelay: DefaultInitialReconnectDelay,
		maxReconnectDelay:     DefaultMaxReconnectDelay,
		reconnectJitter:       DefaultReconnectJitter,
		autoReconnect:         true,
		logger:                NewNoOpLogger(),
		metrics:               &NoOpMetrics{},
		maxPacketSize:         DefaultMaxPacketSize,
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithTimeout bounds a connection attempt, from dialing until CONNACK.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInitialReconnectDelay sets the first reconnect delay.
func WithInitialReconnectDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		o.initialReconnectDelay = d
	}
}

// WithMaxReconnectDelay caps the reconnect delay.
func WithMaxReconnectDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		o.maxReconnectDelay = d
	}
}

// WithReconnectJitter sets the random spread applied to each reconnect delay,
// as a fraction of half the current delay. Values are clamped to [0, 1].
func WithReconnectJitter(jitter float64) Option {
	return func(o *clientOptions) {
		o.reconnectJitter = min(max(jitter, 0), 1)
	}
}

// WithAutoReconnect enables or disables reconnecting after a connection
// loss. It is enabled by default.
func WithAutoReconnect(enabled bool) Option {
	return func(o *clientOptions) {
		o.autoReconnect = enabled
	}
}

// WithRequestTimeout fails Publish, Subscribe and Unsubscribe with
// ErrRequestTimeout when no acknowledgement arrives in time. Zero, the
// default, waits until the acknowledgement, the caller's context or
// Disconnect. The packet id of a timed out request stays reserved until
// its late acknowledgement arrives or the broker reports no session.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.requestTimeout = d
	}
}

// WithLogger sets the logger. Engine traces are logged and also emitted as
// LogEvent.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithDialer replaces the WebSocket transport. WithHeader, WithWriteTimeout
// and the proxy options are ignored when a dialer is set.
func WithDialer(d Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

// WithHeader adds HTTP headers to the WebSocket handshake.
func WithHeader(header http.Header) Option {
	return func(o *clientOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		for k, v := range header {
			o.header[k] = append(o.header[k], v...)
		}
	}
}

// WithWriteTimeout bounds each transport write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.writeTimeout = d
	}
}

// WithProxy routes the WebSocket connection through an HTTP CONNECT or
// SOCKS5 proxy. Credentials may be given here or in the URL.
func WithProxy(proxyURL, username, password string) Option {
	return func(o *clientOptions) {
		o.proxyURL = proxyURL
		o.proxyUser = username
		o.proxyPass = password
	}
}

// WithProxyFromEnvironment picks the proxy from HTTPS_PROXY, HTTP_PROXY and
// NO_PROXY when WithProxy is not used.
func WithProxyFromEnvironment() Option {
	return func(o *clientOptions) {
		o.proxyFromEnv = true
	}
}

// WithMaxPacketSize limits inbound packets when the CONNECT packet does not
// carry a Maximum Packet Size of its own.
func WithMaxPacketSize(size uint32) Option {
	return func(o *clientOptions) {
		if size > maxVarint+5 {
			size = maxVarint + 5
		}
		o.maxPacketSize = size
	}
}

// WithOnEvent registers an event handler. Handlers run one at a time on the
// client's dispatch goroutine, in emission order, and may call the client.
func WithOnEvent(handler EventHandler) Option {
	return func(o *clientOptions) {
		if handler != nil {
			o.onEvent = append(o.onEvent, handler)
		}
	}
}

// WithPublishRateLimit makes Publish wait until a token is available. burst
// below 1 is treated as 1.
func WithPublishRateLimit(perSecond float64, burst int) Option {
	return func(o *clientOptions) {
		o.publishRate = rate.Limit(perSecond)
		o.publishBurst = max(burst, 1)
	}
}

func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// buildDialer returns the configured transport for url.
func (o *clientOptions) buildDialer(url string) (Dialer, error) {
	if o.dialer != nil {
		return o.dialer, nil
	}

	d := NewWSDialer()
	d.Header = o.header
	d.WriteTimeout = o.writeTimeout

	proxyURL := o.proxyURL
	if proxyURL == "" && o.proxyFromEnv {
		u, err := ProxyFromEnvironment(url)
		if err != nil {
			return nil, err
		}
		if u != nil {
			proxyURL = u.String()
		}
	}

	if proxyURL != "" {
		pd, err := NewProxyDialer(proxyURL, o.proxyUser, o.proxyPass)
		if err != nil {
			return nil, err
		}
		d.WithNetDialContext(pd.DialContext)
	}

	return d, nil
}
