package mqttws

import (
	"errors"
	"sync"
)

// Topic alias errors.
var (
	ErrTopicAliasInvalid  = errors.New("topic alias invalid")
	ErrTopicAliasNotFound = errors.New("topic alias not found")
)

// TopicAliasManager keeps both alias tables of a client. Outbound entries
// are recorded from the client's own publishes; inbound entries are set by
// the broker and only live for one connection.
type TopicAliasManager struct {
	mu          sync.RWMutex
	inbound     map[uint16]string
	outbound    map[uint16]string
	inboundMax  uint16
	outboundMax uint16
}

// NewTopicAliasManager returns empty tables. inboundMax is the Topic Alias
// Maximum the client sent in CONNECT.
func NewTopicAliasManager(inboundMax uint16) *TopicAliasManager {
	return &TopicAliasManager{
		inbound:    make(map[uint16]string),
		outbound:   make(map[uint16]string),
		inboundMax: inboundMax,
	}
}

// RecordOutbound remembers that alias stands for topic.
func (m *TopicAliasManager) RecordOutbound(alias uint16, topic string) {
	m.mu.Lock()
	m.outbound[alias] = topic
	m.mu.Unlock()
}

// InvalidateTopic drops the outbound alias mapped to topic, if any. It is
// called when topic is published without an alias.
func (m *TopicAliasManager) InvalidateTopic(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for alias, t := range m.outbound {
		if t == topic {
			delete(m.outbound, alias)
			return
		}
	}
}

// OutboundTopic returns the topic recorded for alias.
func (m *TopicAliasManager) OutboundTopic(alias uint16) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topic, ok := m.outbound[alias]
	return topic, ok
}

// CheckOutbound validates alias against the broker's Topic Alias Maximum.
// Before the first CONNACK nothing is known and every alias passes.
func (m *TopicAliasManager) CheckOutbound(alias uint16, known bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if alias == 0 || (known && alias > m.outboundMax) {
		return ErrTopicAliasInvalid
	}
	return nil
}

// SetInbound records an alias announced by the broker.
func (m *TopicAliasManager) SetInbound(alias uint16, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alias == 0 || alias > m.inboundMax {
		return ErrTopicAliasInvalid
	}
	m.inbound[alias] = topic
	return nil
}

// ResolveInbound returns the topic for an alias announced by the broker.
func (m *TopicAliasManager) ResolveInbound(alias uint16) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if alias == 0 || alias > m.inboundMax {
		return "", ErrTopicAliasInvalid
	}
	topic, ok := m.inbound[alias]
	if !ok {
		return "", ErrTopicAliasNotFound
	}
	return topic, nil
}

// NewConnection clears the inbound table and applies the limits of a new
// connection. The outbound table is kept for remapping replayed publishes.
func (m *TopicAliasManager) NewConnection(inboundMax, outboundMax uint16) {
	m.mu.Lock()
	m.inbound = make(map[uint16]string)
	m.inboundMax = inboundMax
	m.outboundMax = outboundMax
	m.mu.Unlock()
}

// OutboundMax returns the broker's Topic Alias Maximum.
func (m *TopicAliasManager) OutboundMax() uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outboundMax
}

// OutboundCount returns the number of recorded outbound aliases.
func (m *TopicAliasManager) OutboundCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outbound)
}
