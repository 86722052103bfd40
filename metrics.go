package mqttws

import (
	"strconv"
	"time"
)

// MetricLabels are key-value pairs attached to a metric.
type MetricLabels map[string]string

// Metrics is the sink the client reports to. Implementations must be safe
// for concurrent use.
type Metrics interface {
	Counter(name string, labels MetricLabels) Counter
	Gauge(name string, labels MetricLabels) Gauge
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
	Value() float64
}

// Histogram tracks observed values.
type Histogram interface {
	Observe(value float64)
	// ObserveDuration records d in seconds.
	ObserveDuration(d time.Duration)
	Count() uint64
	Sum() float64
}

// NoOpMetrics drops everything. It is the default sink.
type NoOpMetrics struct{}

func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter     { return noOpCounter{} }
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge         { return noOpGauge{} }
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram { return noOpHistogram{} }

type noOpCounter struct{}

func (noOpCounter) Inc()           {}
func (noOpCounter) Add(_ float64)  {}
func (noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (noOpGauge) Set(_ float64)  {}
func (noOpGauge) Inc()           {}
func (noOpGauge) Dec()           {}
func (noOpGauge) Add(_ float64)  {}
func (noOpGauge) Sub(_ float64)  {}
func (noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (noOpHistogram) Observe(_ float64)               {}
func (noOpHistogram) ObserveDuration(_ time.Duration) {}
func (noOpHistogram) Count() uint64                   { return 0 }
func (noOpHistogram) Sum() float64                    { return 0 }

// Client metric names.
const (
	MetricConnectAttempts   = "mqttws_connect_attempts_total"
	MetricConnected         = "mqttws_connected"
	MetricReconnects        = "mqttws_reconnects_total"
	MetricPacketsSent       = "mqttws_packets_sent_total"
	MetricPacketsReceived   = "mqttws_packets_received_total"
	MetricBytesSent         = "mqttws_bytes_sent_total"
	MetricBytesReceived     = "mqttws_bytes_received_total"
	MetricMessagesPublished = "mqttws_messages_published_total"
	MetricMessagesReceived  = "mqttws_messages_received_total"
	MetricInflight          = "mqttws_inflight"
	MetricPendingPublishes  = "mqttws_pending_publishes"
	MetricPublishLatency    = "mqttws_publish_latency_seconds"
	MetricSubscriptions     = "mqttws_subscriptions"
)

// Metric label names.
const (
	LabelPacketType = "packet_type"
	LabelQoS        = "qos"
)

// clientMetrics wraps a Metrics sink with the client's instrument set.
type clientMetrics struct {
	m Metrics
}

func newClientMetrics(m Metrics) *clientMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &clientMetrics{m: m}
}

func qosLabel(qos byte) MetricLabels {
	return MetricLabels{LabelQoS: strconv.Itoa(int(qos))}
}

func (c *clientMetrics) connectAttempt() {
	c.m.Counter(MetricConnectAttempts, nil).Inc()
}

func (c *clientMetrics) connected(up bool) {
	if up {
		c.m.Gauge(MetricConnected, nil).Set(1)
		return
	}
	c.m.Gauge(MetricConnected, nil).Set(0)
}

func (c *clientMetrics) reconnected() {
	c.m.Counter(MetricReconnects, nil).Inc()
}

func (c *clientMetrics) packetSent(t PacketType, n int) {
	c.m.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: t.String()}).Inc()
	c.m.Counter(MetricBytesSent, nil).Add(float64(n))
}

func (c *clientMetrics) packetReceived(t PacketType, n int) {
	c.m.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: t.String()}).Inc()
	c.m.Counter(MetricBytesReceived, nil).Add(float64(n))
}

func (c *clientMetrics) published(qos byte, latency time.Duration) {
	c.m.Counter(MetricMessagesPublished, qosLabel(qos)).Inc()
	if qos > 0 {
		c.m.Histogram(MetricPublishLatency, qosLabel(qos)).ObserveDuration(latency)
	}
}

func (c *clientMetrics) messageReceived(qos byte) {
	c.m.Counter(MetricMessagesReceived, qosLabel(qos)).Inc()
}

func (c *clientMetrics) inflight(n int) {
	c.m.Gauge(MetricInflight, nil).Set(float64(n))
}

func (c *clientMetrics) pending(n int) {
	c.m.Gauge(MetricPendingPublishes, nil).Set(float64(n))
}

func (c *clientMetrics) subscriptions(n int) {
	c.m.Gauge(MetricSubscriptions, nil).Set(float64(n))
}
