package mqttws

import (
	"errors"
	"io"
)

// ErrNoTopicFilters is returned for an UNSUBSCRIBE without filters.
var ErrNoTopicFilters = errors.New("UNSUBSCRIBE must contain at least one topic filter")

// UnsubscribePacket is the UNSUBSCRIBE packet.
type UnsubscribePacket struct {
	PacketID       uint16
	TopicFilters   []string
	UserProperties []StringPair
}

func (p *UnsubscribePacket) Type() PacketType { return PacketUNSUBSCRIBE }

func (p *UnsubscribePacket) GetPacketID() uint16   { return p.PacketID }
func (p *UnsubscribePacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *UnsubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	encodeUint16(&buf, p.PacketID)

	var props Properties
	props.addUserProperties(p.UserProperties)
	if _, err := props.Encode(&buf); err != nil {
		return 0, err
	}

	for _, filter := range p.TopicFilters {
		if _, err := encodeString(&buf, filter); err != nil {
			return 0, err
		}
	}

	return encodeFrame(w, PacketUNSUBSCRIBE, flagPubrel, buf.Bytes())
}

func (p *UnsubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketUNSUBSCRIBE {
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
	n, err = props.Decode(r, PropCtxUNSUBSCRIBE)
	total += n
	if err != nil {
		return total, err
	}
	p.UserProperties = props.UserProperties()

	for total < int(header.RemainingLength) {
		filter, n, err := decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
		p.TopicFilters = append(p.TopicFilters, filter)
	}

	return total, p.Validate()
}

// Validate checks the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if len(p.TopicFilters) == 0 {
		return ErrNoTopicFilters
	}
	for _, filter := range p.TopicFilters {
		if err := ValidateTopicFilter(filter); err != nil {
			return err
		}
	}
	return nil
}
