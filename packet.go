package mqttws

import (
	"io"
	"unicode/utf8"
)

// Packet is implemented by the 15 MQTT control packets. The set is closed.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the packet, fixed header included, to w.
	Encode(w io.Writer) (int, error)

	// Decode reads the packet body. The fixed header is already consumed.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate checks the packet before encoding.
	Validate() error

	isPacket()
}

// PacketWithID is implemented by packets carrying a packet identifier.
type PacketWithID interface {
	Packet
	GetPacketID() uint16
	SetPacketID(id uint16)
}

func (*ConnectPacket) isPacket()     {}
func (*ConnackPacket) isPacket()     {}
func (*PublishPacket) isPacket()     {}
func (*PubackPacket) isPacket()      {}
func (*PubrecPacket) isPacket()      {}
func (*PubrelPacket) isPacket()      {}
func (*PubcompPacket) isPacket()     {}
func (*SubscribePacket) isPacket()   {}
func (*SubackPacket) isPacket()      {}
func (*UnsubscribePacket) isPacket() {}
func (*UnsubackPacket) isPacket()    {}
func (*PingreqPacket) isPacket()     {}
func (*PingrespPacket) isPacket()    {}
func (*DisconnectPacket) isPacket()  {}
func (*AuthPacket) isPacket()        {}

// Payload format indicator values.
const (
	PayloadFormatBytes byte = 0
	PayloadFormatUTF8  byte = 1
)

// Message is an application message, both for publishing and for delivery
// to subscription handlers.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool

	// Duplicate is set on delivered messages that the broker marked as redelivery.
	Duplicate bool

	// TopicAlias, when non-zero, is sent as the Topic Alias property. Topic may
	// then be empty if the alias was established earlier.
	TopicAlias uint16

	PayloadFormat   byte
	MessageExpiry   uint32
	ContentType     string
	ResponseTopic   string
	CorrelationData []byte
	UserProperties  []StringPair

	// SubscriptionIdentifiers is only set on delivered messages.
	SubscriptionIdentifiers []uint32
}

// PayloadString returns the payload as text. Payloads that are not valid
// UTF-8 yield an empty string and false.
func (m *Message) PayloadString() (string, bool) {
	if !utf8.Valid(m.Payload) {
		return "", false
	}
	return string(m.Payload), true
}

// UserProperty returns every value recorded for key, in wire order.
func (m *Message) UserProperty(key string) []string {
	var out []string
	for _, sp := range m.UserProperties {
		if sp.Key == key {
			out = append(out, sp.Value)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := *m
	clone.Payload = cloneBytes(m.Payload)
	clone.CorrelationData = cloneBytes(m.CorrelationData)

	if m.UserProperties != nil {
		clone.UserProperties = make([]StringPair, len(m.UserProperties))
		copy(clone.UserProperties, m.UserProperties)
	}

	if m.SubscriptionIdentifiers != nil {
		clone.SubscriptionIdentifiers = make([]uint32, len(m.SubscriptionIdentifiers))
		copy(clone.SubscriptionIdentifiers, m.SubscriptionIdentifiers)
	}

	return &clone
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// properties builds the PUBLISH property list for m.
func (m *Message) properties() Properties {
	var p Properties

	p.setIfByte(PropPayloadFormatIndicator, m.PayloadFormat)
	p.setIfUint32(PropMessageExpiryInterval, m.MessageExpiry)
	p.setIfUint16(PropTopicAlias, m.TopicAlias)
	p.setIfString(PropResponseTopic, m.ResponseTopic)
	p.setIfBinary(PropCorrelationData, m.CorrelationData)
	p.setIfString(PropContentType, m.ContentType)
	p.addUserProperties(m.UserProperties)

	return p
}

// applyProperties fills m from a decoded PUBLISH property list.
func (m *Message) applyProperties(p *Properties) {
	m.PayloadFormat = p.GetByte(PropPayloadFormatIndicator)
	m.MessageExpiry = p.GetUint32(PropMessageExpiryInterval)
	m.TopicAlias = p.GetUint16(PropTopicAlias)
	m.ContentType = p.GetString(PropContentType)
	m.ResponseTopic = p.GetString(PropResponseTopic)
	m.CorrelationData = p.GetBinary(PropCorrelationData)
	m.UserProperties = p.UserProperties()
	m.SubscriptionIdentifiers = p.VarInts(PropSubscriptionIdentifier)
}

// encodeFrame writes the fixed header for body followed by body itself.
func encodeFrame(w io.Writer, t PacketType, flags byte, body []byte) (int, error) {
	header := FixedHeader{
		PacketType:      t,
		Flags:           flags,
		RemainingLength: uint32(len(body)),
	}

	n, err := header.Encode(w)
	if err != nil {
		return n, err
	}

	n2, err := w.Write(body)
	return n + n2, err
}
