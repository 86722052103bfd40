package mqttws

import "io"

// ackPacket is the shared body of PUBACK, PUBREC, PUBREL and PUBCOMP.
type ackPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

// encodeAck writes an acknowledgement. The reason code and properties are
// omitted when the reason is success and there are no properties, leaving a
// remaining length of exactly 2.
func encodeAck(w io.Writer, t PacketType, flags byte, ack *ackPacket) (int, error) {
	if ack.PacketID == 0 {
		return 0, ErrPacketIDRequired
	}
	if !ack.ReasonCode.ValidFor(t) {
		return 0, ErrInvalidReasonCode
	}

	var buf bytesBuffer
	encodeUint16(&buf, ack.PacketID)

	if ack.ReasonCode != ReasonSuccess || ack.Props.Len() > 0 {
		buf.Write([]byte{byte(ack.ReasonCode)})
		if ack.Props.Len() > 0 {
			if _, err := ack.Props.Encode(&buf); err != nil {
				return 0, err
			}
		}
	}

	return encodeFrame(w, t, flags, buf.Bytes())
}

// decodeAck reads an acknowledgement body. A missing reason code means success.
func decodeAck(r io.Reader, header FixedHeader, ack *ackPacket, ctx PropertyContext) (int, error) {
	id, total, err := decodeUint16(r)
	if err != nil {
		return total, err
	}
	if id == 0 {
		return total, ErrPacketIDRequired
	}
	ack.PacketID = id
	ack.ReasonCode = ReasonSuccess

	if header.RemainingLength < 3 {
		return total, nil
	}

	code, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	ack.ReasonCode = ReasonCode(code)
	if !ack.ReasonCode.ValidFor(header.PacketType) {
		return total, ErrInvalidReasonCode
	}

	if header.RemainingLength < 4 {
		return total, nil
	}

	n, err = ack.Props.Decode(r, ctx)
	return total + n, err
}

func (a *ackPacket) validate(t PacketType) error {
	if a.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if !a.ReasonCode.ValidFor(t) {
		return ErrInvalidReasonCode
	}
	return nil
}
