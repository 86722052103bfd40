package mqttws

import (
	"errors"
	"io"
)

// ErrInvalidConnackFlags is returned when reserved CONNACK flag bits are set.
var ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")

// Defaults that apply when the broker omits the property.
const (
	defaultReceiveMaximum uint16 = 65535
	defaultMaximumQoS     byte   = 2
)

// ConnackPacket is the broker's reply to CONNECT.
type ConnackPacket struct {
	SessionPresent bool
	ReasonCode     ReasonCode
	Props          Properties
}

func (p *ConnackPacket) Type() PacketType { return PacketCONNACK }

// Properties returns the packet's property list.
func (p *ConnackPacket) Properties() *Properties { return &p.Props }

// SessionExpiryInterval returns the interval granted by the broker, if any.
func (p *ConnackPacket) SessionExpiryInterval() (uint32, bool) {
	return p.Props.GetUint32(PropSessionExpiryInterval), p.Props.Has(PropSessionExpiryInterval)
}

// ReceiveMaximum returns the number of unacknowledged QoS 1 and 2
// publishes the broker accepts.
func (p *ConnackPacket) ReceiveMaximum() uint16 {
	if v := p.Props.GetUint16(PropReceiveMaximum); v > 0 {
		return v
	}
	return defaultReceiveMaximum
}

// MaximumQoS returns the highest QoS the broker supports.
func (p *ConnackPacket) MaximumQoS() byte {
	if p.Props.Has(PropMaximumQoS) {
		return p.Props.GetByte(PropMaximumQoS)
	}
	return defaultMaximumQoS
}

// RetainAvailable reports whether the broker supports retained messages.
func (p *ConnackPacket) RetainAvailable() bool {
	return !p.Props.Has(PropRetainAvailable) || p.Props.GetByte(PropRetainAvailable) == 1
}

// MaximumPacketSize returns the broker's packet size limit, 0 when unlimited.
func (p *ConnackPacket) MaximumPacketSize() uint32 {
	return p.Props.GetUint32(PropMaximumPacketSize)
}

// AssignedClientID returns the identifier the broker assigned, if any.
func (p *ConnackPacket) AssignedClientID() string {
	return p.Props.GetString(PropAssignedClientIdentifier)
}

// TopicAliasMaximum returns the highest alias the client may send.
func (p *ConnackPacket) TopicAliasMaximum() uint16 {
	return p.Props.GetUint16(PropTopicAliasMaximum)
}

// ReasonString returns the human readable diagnostic, if any.
func (p *ConnackPacket) ReasonString() string {
	return p.Props.GetString(PropReasonString)
}

// UserProperties returns the user properties in wire order.
func (p *ConnackPacket) UserProperties() []StringPair {
	return p.Props.UserProperties()
}

// WildcardSubAvailable reports whether wildcard filters are supported.
func (p *ConnackPacket) WildcardSubAvailable() bool {
	return !p.Props.Has(PropWildcardSubAvailable) || p.Props.GetByte(PropWildcardSubAvailable) == 1
}

// SubscriptionIDAvailable reports whether subscription identifiers are supported.
func (p *ConnackPacket) SubscriptionIDAvailable() bool {
	return !p.Props.Has(PropSubscriptionIDAvailable) || p.Props.GetByte(PropSubscriptionIDAvailable) == 1
}

// SharedSubAvailable reports whether shared subscriptions are supported.
func (p *ConnackPacket) SharedSubAvailable() bool {
	return !p.Props.Has(PropSharedSubAvailable) || p.Props.GetByte(PropSharedSubAvailable) == 1
}

// ServerKeepAlive returns the keep alive the broker imposes, if any.
func (p *ConnackPacket) ServerKeepAlive() (uint16, bool) {
	return p.Props.GetUint16(PropServerKeepAlive), p.Props.Has(PropServerKeepAlive)
}

// ResponseInformation returns the response information, if any.
func (p *ConnackPacket) ResponseInformation() string {
	return p.Props.GetString(PropResponseInformation)
}

// ServerReference returns the alternative server, if any.
func (p *ConnackPacket) ServerReference() string {
	return p.Props.GetString(PropServerReference)
}

// Encode writes the packet to w.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	buf.Write([]byte{flags, byte(p.ReasonCode)})

	if _, err := p.Props.Encode(&buf); err != nil {
		return 0, err
	}

	return encodeFrame(w, PacketCONNACK, 0, buf.Bytes())
}

// Decode reads the packet body from r.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNACK {
		return 0, ErrInvalidPacketType
	}

	flags, total, err := decodeByte(r)
	if err != nil {
		return total, err
	}
	if flags&0xFE != 0 {
		return total, ErrInvalidConnackFlags
	}
	p.SessionPresent = flags&0x01 != 0

	code, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	p.ReasonCode = ReasonCode(code)
	if !p.ReasonCode.ValidFor(PacketCONNACK) {
		return total, ErrInvalidReasonCode
	}

	if header.RemainingLength <= 2 {
		return total, nil
	}

	n, err = p.Props.Decode(r, PropCtxCONNACK)
	return total + n, err
}

// Validate checks the packet contents.
func (p *ConnackPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketCONNACK) {
		return ErrInvalidReasonCode
	}
	if p.SessionPresent && p.ReasonCode.IsError() {
		return ErrInvalidConnackFlags
	}
	return nil
}
