package mqttws

import "io"

// PubrelPacket is the QoS 2 publish release step.
type PubrelPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

func (p *PubrelPacket) GetPacketID() uint16   { return p.PacketID }
func (p *PubrelPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *PubrelPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *PubrelPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREL, flagPubrel, &ackPacket{
		PacketID:   p.PacketID,
		ReasonCode: p.ReasonCode,
		Props:      p.Props,
	})
}

func (p *PubrelPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBREL {
		return 0, ErrInvalidPacketType
	}
	var ack ackPacket
	n, err := decodeAck(r, header, &ack, PropCtxPUBREL)
	p.PacketID, p.ReasonCode, p.Props = ack.PacketID, ack.ReasonCode, ack.Props
	return n, err
}

func (p *PubrelPacket) Validate() error {
	return (&ackPacket{PacketID: p.PacketID, ReasonCode: p.ReasonCode}).validate(PacketPUBREL)
}
