package mqttws

import "io"

// DisconnectPacket is sent by either side to close the connection.
// The zero value is a normal disconnection.
type DisconnectPacket struct {
	ReasonCode ReasonCode
	Props      Properties
}

func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }

// Properties returns the packet's property list.
func (p *DisconnectPacket) Properties() *Properties { return &p.Props }

// ReasonString returns the diagnostic text, if any.
func (p *DisconnectPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

// ServerReference returns the server the client should use instead, if any.
func (p *DisconnectPacket) ServerReference() string { return p.Props.GetString(PropServerReference) }

// SessionExpiryInterval returns the updated session expiry, if any.
func (p *DisconnectPacket) SessionExpiryInterval() (uint32, bool) {
	return p.Props.GetUint32(PropSessionExpiryInterval), p.Props.Has(PropSessionExpiryInterval)
}

// Encode writes the packet to w. A normal disconnection without properties
// has a remaining length of 0.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	if p.ReasonCode != ReasonNormalDisconnection || p.Props.Len() > 0 {
		buf.Write([]byte{byte(p.ReasonCode)})
		if p.Props.Len() > 0 {
			if _, err := p.Props.Encode(&buf); err != nil {
				return 0, err
			}
		}
	}

	return encodeFrame(w, PacketDISCONNECT, 0, buf.Bytes())
}

func (p *DisconnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketDISCONNECT {
		return 0, ErrInvalidPacketType
	}

	p.ReasonCode = ReasonNormalDisconnection
	if header.RemainingLength == 0 {
		return 0, nil
	}

	code, total, err := decodeByte(r)
	if err != nil {
		return total, err
	}
	p.ReasonCode = ReasonCode(code)
	if !p.ReasonCode.ValidFor(PacketDISCONNECT) {
		return total, ErrInvalidReasonCode
	}

	if header.RemainingLength < 2 {
		return total, nil
	}

	n, err := p.Props.Decode(r, PropCtxDISCONNECT)
	return total + n, err
}

func (p *DisconnectPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketDISCONNECT) {
		return ErrInvalidReasonCode
	}
	return nil
}
