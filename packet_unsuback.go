package mqttws

import "io"

// UnsubackPacket is the broker's reply to UNSUBSCRIBE, one reason code per filter.
type UnsubackPacket struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
	Props       Properties
}

func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

func (p *UnsubackPacket) GetPacketID() uint16   { return p.PacketID }
func (p *UnsubackPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *UnsubackPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *UnsubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeReasonList(w, PacketUNSUBACK, p.PacketID, &p.Props, p.ReasonCodes)
}

func (p *UnsubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketUNSUBACK {
		return 0, ErrInvalidPacketType
	}
	var err error
	var n int
	p.PacketID, p.ReasonCodes, n, err = decodeReasonList(r, header, &p.Props, PropCtxUNSUBACK)
	return n, err
}

func (p *UnsubackPacket) Validate() error {
	return validateReasonList(PacketUNSUBACK, p.PacketID, p.ReasonCodes)
}
