package mqttws

import "io"

// PubrecPacket is the QoS 2 publish received step.
type PubrecPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

func (p *PubrecPacket) GetPacketID() uint16   { return p.PacketID }
func (p *PubrecPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *PubrecPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *PubrecPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREC, 0, &ackPacket{
		PacketID:   p.PacketID,
		ReasonCode: p.ReasonCode,
		Props:      p.Props,
	})
}

func (p *PubrecPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBREC {
		return 0, ErrInvalidPacketType
	}
	var ack ackPacket
	n, err := decodeAck(r, header, &ack, PropCtxPUBREC)
	p.PacketID, p.ReasonCode, p.Props = ack.PacketID, ack.ReasonCode, ack.Props
	return n, err
}

func (p *PubrecPacket) Validate() error {
	return (&ackPacket{PacketID: p.PacketID, ReasonCode: p.ReasonCode}).validate(PacketPUBREC)
}
