package mqttws

import "io"

// AuthPacket is the enhanced authentication exchange packet. The client
// decodes it so every packet type has a representation, but does not
// take part in enhanced authentication.
type AuthPacket struct {
	ReasonCode ReasonCode
	Props      Properties
}

func (p *AuthPacket) Type() PacketType { return PacketAUTH }

// AuthMethod returns the authentication method, if any.
func (p *AuthPacket) AuthMethod() string { return p.Props.GetString(PropAuthenticationMethod) }

func (p *AuthPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	if p.ReasonCode != ReasonSuccess || p.Props.Len() > 0 {
		buf.Write([]byte{byte(p.ReasonCode)})
		if _, err := p.Props.Encode(&buf); err != nil {
			return 0, err
		}
	}

	return encodeFrame(w, PacketAUTH, 0, buf.Bytes())
}

func (p *AuthPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketAUTH {
		return 0, ErrInvalidPacketType
	}

	p.ReasonCode = ReasonSuccess
	if header.RemainingLength == 0 {
		return 0, nil
	}

	code, total, err := decodeByte(r)
	if err != nil {
		return total, err
	}
	p.ReasonCode = ReasonCode(code)
	if !p.ReasonCode.ValidFor(PacketAUTH) {
		return total, ErrInvalidReasonCode
	}

	if header.RemainingLength < 2 {
		return total, nil
	}

	n, err := p.Props.Decode(r, PropCtxAUTH)
	return total + n, err
}

func (p *AuthPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketAUTH) {
		return ErrInvalidReasonCode
	}
	return nil
}
