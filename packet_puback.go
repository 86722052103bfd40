package mqttws

import "io"

// PubackPacket is the QoS 1 publish acknowledgement.
type PubackPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

func (p *PubackPacket) GetPacketID() uint16   { return p.PacketID }
func (p *PubackPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *PubackPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBACK, 0, &ackPacket{
		PacketID:   p.PacketID,
		ReasonCode: p.ReasonCode,
		Props:      p.Props,
	})
}

func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBACK {
		return 0, ErrInvalidPacketType
	}
	var ack ackPacket
	n, err := decodeAck(r, header, &ack, PropCtxPUBACK)
	p.PacketID, p.ReasonCode, p.Props = ack.PacketID, ack.ReasonCode, ack.Props
	return n, err
}

func (p *PubackPacket) Validate() error {
	return (&ackPacket{PacketID: p.PacketID, ReasonCode: p.ReasonCode}).validate(PacketPUBACK)
}
