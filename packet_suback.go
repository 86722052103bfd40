package mqttws

import "io"

// SubackPacket is the broker's reply to SUBSCRIBE, one reason code per filter.
type SubackPacket struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
	Props       Properties
}

func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

func (p *SubackPacket) GetPacketID() uint16   { return p.PacketID }
func (p *SubackPacket) SetPacketID(id uint16) { p.PacketID = id }

// ReasonString returns the diagnostic text, if any.
func (p *SubackPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

// UserProperties returns the user properties in wire order.
func (p *SubackPacket) UserProperties() []StringPair { return p.Props.UserProperties() }

func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodeReasonList(w, PacketSUBACK, p.PacketID, &p.Props, p.ReasonCodes)
}

func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}
	var err error
	var n int
	p.PacketID, p.ReasonCodes, n, err = decodeReasonList(r, header, &p.Props, PropCtxSUBACK)
	return n, err
}

func (p *SubackPacket) Validate() error {
	return validateReasonList(PacketSUBACK, p.PacketID, p.ReasonCodes)
}

// encodeReasonList writes the SUBACK and UNSUBACK layout: packet id,
// properties, then one reason code per filter.
func encodeReasonList(w io.Writer, t PacketType, id uint16, props *Properties, codes []ReasonCode) (int, error) {
	var buf bytesBuffer
	encodeUint16(&buf, id)
	if _, err := props.Encode(&buf); err != nil {
		return 0, err
	}
	for _, c := range codes {
		buf.Write([]byte{byte(c)})
	}
	return encodeFrame(w, t, 0, buf.Bytes())
}

func decodeReasonList(r io.Reader, header FixedHeader, props *Properties, ctx PropertyContext) (uint16, []ReasonCode, int, error) {
	id, total, err := decodeUint16(r)
	if err != nil {
		return 0, nil, total, err
	}

	n, err := props.Decode(r, ctx)
	total += n
	if err != nil {
		return id, nil, total, err
	}

	var codes []ReasonCode
	for total < int(header.RemainingLength) {
		b, n, err := decodeByte(r)
		total += n
		if err != nil {
			return id, codes, total, err
		}
		codes = append(codes, ReasonCode(b))
	}

	return id, codes, total, validateReasonList(header.PacketType, id, codes)
}

func validateReasonList(t PacketType, id uint16, codes []ReasonCode) error {
	if id == 0 {
		return ErrPacketIDRequired
	}
	if len(codes) == 0 {
		return ErrInvalidReasonCode
	}
	for _, c := range codes {
		if !c.ValidFor(t) {
			return ErrInvalidReasonCode
		}
	}
	return nil
}
