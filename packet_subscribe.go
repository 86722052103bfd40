package mqttws

import (
	"errors"
	"io"
)

// SUBSCRIBE packet errors.
var (
	ErrNoSubscriptions       = errors.New("SUBSCRIBE must contain at least one topic filter")
	ErrInvalidSubOptions     = errors.New("invalid subscription options")
	maxSubscriptionID uint32 = maxVarint
)

// Retain handling options.
const (
	RetainSendOnSubscribe      byte = 0
	RetainSendIfNewSubscribe   byte = 1
	RetainDoNotSendOnSubscribe byte = 2
)

const (
	subOptQoSMask           byte = 0x03
	subOptNoLocal           byte = 0x04
	subOptRetainAsPublished byte = 0x08
	subOptReserved          byte = 0xC0
)

// Subscription is one topic filter with its subscription options.
type Subscription struct {
	TopicFilter       string
	QoS               byte
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    byte
}

func (s *Subscription) options() byte {
	opts := s.QoS & subOptQoSMask
	if s.NoLocal {
		opts |= subOptNoLocal
	}
	if s.RetainAsPublished {
		opts |= subOptRetainAsPublished
	}
	return opts | (s.RetainHandling&0x03)<<4
}

func (s *Subscription) setOptions(opts byte) error {
	if opts&subOptReserved != 0 {
		return ErrInvalidSubOptions
	}
	s.QoS = opts & subOptQoSMask
	s.NoLocal = opts&subOptNoLocal != 0
	s.RetainAsPublished = opts&subOptRetainAsPublished != 0
	s.RetainHandling = (opts >> 4) & 0x03
	if s.QoS > 2 || s.RetainHandling > 2 {
		return ErrInvalidSubOptions
	}
	return nil
}

// SubscribePacket is the SUBSCRIBE packet.
type SubscribePacket struct {
	PacketID uint16

	// SubscriptionIdentifier, when non-zero, is echoed by the broker on
	// every PUBLISH matching these filters.
	SubscriptionIdentifier uint32
	UserProperties         []StringPair

	Subscriptions []Subscription
}

func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

func (p *SubscribePacket) GetPacketID() uint16   { return p.PacketID }
func (p *SubscribePacket) SetPacketID(id uint16) { p.PacketID = id }

// Filters returns the topic filters in order.
func (p *SubscribePacket) Filters() []string {
	out := make([]string, len(p.Subscriptions))
	for i := range p.Subscriptions {
		out[i] = p.Subscriptions[i].TopicFilter
	}
	return out
}

// Clone returns a deep copy of p.
func (p *SubscribePacket) Clone() *SubscribePacket {
	c := *p
	c.Subscriptions = append([]Subscription(nil), p.Subscriptions...)
	if p.UserProperties != nil {
		c.UserProperties = append([]StringPair(nil), p.UserProperties...)
	}
	return &c
}

func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	encodeUint16(&buf, p.PacketID)

	var props Properties
	if p.SubscriptionIdentifier != 0 {
		props.Add(PropSubscriptionIdentifier, p.SubscriptionIdentifier)
	}
	props.addUserProperties(p.UserProperties)
	if _, err := props.Encode(&buf); err != nil {
		return 0, err
	}

	for i := range p.Subscriptions {
		if _, err := encodeString(&buf, p.Subscriptions[i].TopicFilter); err != nil {
			return 0, err
		}
		buf.Write([]byte{p.Subscriptions[i].options()})
	}

	return encodeFrame(w, PacketSUBSCRIBE, flagPubrel, buf.Bytes())
}

func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBSCRIBE {
		return 0, ErrInvalidPacketType
	}

	var total, n int
	var err error

	p.PacketID, n, err = decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}

	var props Properties
	n, err = props.Decode(r, PropCtxSUBSCRIBE)
	total += n
	if err != nil {
		return total, err
	}
	p.SubscriptionIdentifier = props.GetUint32(PropSubscriptionIdentifier)
	p.UserProperties = props.UserProperties()

	for total < int(header.RemainingLength) {
		var sub Subscription
		sub.TopicFilter, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}

		opts, n, err := decodeByte(r)
		total += n
		if err != nil {
			return total, err
		}
		if err := sub.setOptions(opts); err != nil {
			return total, err
		}

		p.Subscriptions = append(p.Subscriptions, sub)
	}

	return total, p.Validate()
}

// Validate checks the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if len(p.Subscriptions) == 0 {
		return ErrNoSubscriptions
	}
	if p.SubscriptionIdentifier > maxSubscriptionID {
		return ErrInvalidSubscriptionID
	}
	for i := range p.Subscriptions {
		sub := &p.Subscriptions[i]
		if sub.QoS > 2 {
			return ErrInvalidQoS
		}
		if sub.RetainHandling > 2 {
			return ErrInvalidSubOptions
		}
		if err := ValidateTopicFilter(sub.TopicFilter); err != nil {
			return err
		}
	}
	return nil
}
