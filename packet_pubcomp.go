package mqttws

import "io"

// PubcompPacket is the QoS 2 publish complete step.
type PubcompPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

func (p *PubcompPacket) GetPacketID() uint16   { return p.PacketID }
func (p *PubcompPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *PubcompPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *PubcompPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBCOMP, 0, &ackPacket{
		PacketID:   p.PacketID,
		ReasonCode: p.ReasonCode,
		Props:      p.Props,
	})
}

func (p *PubcompPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBCOMP {
		return 0, ErrInvalidPacketType
	}
	var ack ackPacket
	n, err := decodeAck(r, header, &ack, PropCtxPUBCOMP)
	p.PacketID, p.ReasonCode, p.Props = ack.PacketID, ack.ReasonCode, ack.Props
	return n, err
}

func (p *PubcompPacket) Validate() error {
	return (&ackPacket{PacketID: p.PacketID, ReasonCode: p.ReasonCode}).validate(PacketPUBCOMP)
}
