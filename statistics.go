package mqttws

import "sync/atomic"

// Statistics is a snapshot of the client's traffic counters.
type Statistics struct {
	// BytesSent and BytesReceived count every transport write and read.
	BytesSent     uint64
	BytesReceived uint64

	// PublishSent counts completed outbound publishes of any QoS.
	PublishSent uint64
	// PublishReceived counts inbound publishes dispatched to handlers.
	PublishReceived uint64
}

type statistics struct {
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	publishSent     atomic.Uint64
	publishReceived atomic.Uint64
}

func (s *statistics) snapshot() Statistics {
	return Statistics{
		BytesSent:       s.bytesSent.Load(),
		BytesReceived:   s.bytesReceived.Load(),
		PublishSent:     s.publishSent.Load(),
		PublishReceived: s.publishReceived.Load(),
	}
}
