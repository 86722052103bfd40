package mqttws

import (
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrTopicNameEmpty        = errors.New("topic name cannot be empty without a topic alias")
	ErrInvalidQoS            = errors.New("invalid QoS level")
	ErrDupWithQoS0           = errors.New("DUP flag must not be set for QoS 0")
	ErrPacketIDRequired      = errors.New("packet identifier required for QoS > 0")
	ErrInvalidSubscriptionID = errors.New("subscription identifier must not be 0")
)

// PublishPacket is the PUBLISH packet.
type PublishPacket struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	DUP      bool
	PacketID uint16
	Props    Properties
}

func (p *PublishPacket) Type() PacketType { return PacketPUBLISH }

// Properties returns the packet's property list.
func (p *PublishPacket) Properties() *Properties { return &p.Props }

func (p *PublishPacket) GetPacketID() uint16   { return p.PacketID }
func (p *PublishPacket) SetPacketID(id uint16) { p.PacketID = id }

// TopicAlias returns the Topic Alias property, 0 when absent.
func (p *PublishPacket) TopicAlias() uint16 {
	return p.Props.GetUint16(PropTopicAlias)
}

// Encode writes the packet to w.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	buf.data = make([]byte, 0, 2+len(p.Topic)+2+p.Props.encodedSize()+len(p.Payload))

	if _, err := encodeString(&buf, p.Topic); err != nil {
		return 0, err
	}
	if p.QoS > 0 {
		encodeUint16(&buf, p.PacketID)
	}
	if _, err := p.Props.Encode(&buf); err != nil {
		return 0, err
	}
	buf.Write(p.Payload)

	return encodeFrame(w, PacketPUBLISH, publishFlags(p.QoS, p.DUP, p.Retain), buf.Bytes())
}

// Decode reads the packet body from r. The rest of the body after the
// properties is the payload.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBLISH {
		return 0, ErrInvalidPacketType
	}
	if err := header.ValidateFlags(); err != nil {
		return 0, err
	}

	p.DUP = header.DUP()
	p.QoS = header.QoS()
	p.Retain = header.Retain()

	var total, n int
	var err error

	p.Topic, n, err = decodeString(r)
	total += n
	if err != nil {
		return total, err
	}

	if p.QoS > 0 {
		p.PacketID, n, err = decodeUint16(r)
		total += n
		if err != nil {
			return total, err
		}
		if p.PacketID == 0 {
			return total, ErrPacketIDRequired
		}
	}

	n, err = p.Props.Decode(r, PropCtxPUBLISH)
	total += n
	if err != nil {
		return total, err
	}
	for _, id := range p.Props.VarInts(PropSubscriptionIdentifier) {
		if id == 0 {
			return total, ErrInvalidSubscriptionID
		}
	}

	if p.Topic == "" && p.TopicAlias() == 0 {
		return total, ErrTopicNameEmpty
	}
	if p.Topic != "" {
		if err := ValidateTopicName(p.Topic); err != nil {
			return total, err
		}
	}

	payloadLen := int(header.RemainingLength) - total
	if payloadLen < 0 {
		return total, io.ErrUnexpectedEOF
	}
	if br, ok := r.(*bytesReader); ok && payloadLen > 0 && br.Remaining() == payloadLen {
		p.Payload = br.rest()
		total += payloadLen
	} else if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		n, err = io.ReadFull(r, p.Payload)
		total += n
		if err != nil {
			return total, underflow(err)
		}
	}

	return total, nil
}

// Validate checks the packet contents.
func (p *PublishPacket) Validate() error {
	if p.QoS > 2 {
		return ErrInvalidQoS
	}
	if p.QoS == 0 && p.DUP {
		return ErrDupWithQoS0
	}
	if p.QoS > 0 && p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if p.Topic == "" {
		if p.TopicAlias() == 0 {
			return ErrTopicNameEmpty
		}
		return nil
	}
	return ValidateTopicName(p.Topic)
}

// ToMessage converts the packet to a Message.
func (p *PublishPacket) ToMessage() *Message {
	m := &Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Duplicate: p.DUP,
	}
	m.applyProperties(&p.Props)
	return m
}

// FromMessage fills the packet from m. The packet id and DUP flag are left untouched.
func (p *PublishPacket) FromMessage(m *Message) {
	p.Topic = m.Topic
	p.Payload = m.Payload
	p.QoS = m.QoS
	p.Retain = m.Retain
	p.Props = m.properties()
}

// clone returns a copy sharing the payload.
func (p *PublishPacket) clone() *PublishPacket {
	c := *p
	c.Props = p.Props.clone()
	return &c
}
