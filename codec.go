package mqttws

import (
	"errors"
	"fmt"
	"io"
)

// Codec errors.
var (
	ErrMalformedPacket   = errors.New("malformed packet")
	ErrPacketTooLarge    = errors.New("packet exceeds maximum size")
	ErrUnknownPacketType = errors.New("unknown packet type")
)

// DecodeError reports a packet that could not be decoded. It matches
// ErrMalformedPacket with errors.Is, as well as the underlying cause.
type DecodeError struct {
	PacketType PacketType
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.PacketType, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedPacket, e.Err}
}

func decodeError(t PacketType, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{PacketType: t, Err: err}
}

// newPacket returns an empty packet for t.
func newPacket(t PacketType) (Packet, error) {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	case PacketAUTH:
		return &AuthPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// decodeBody decodes a packet whose fixed header has already been parsed.
// body must be exactly header.RemainingLength bytes.
func decodeBody(header FixedHeader, body []byte) (Packet, error) {
	if err := header.ValidateFlags(); err != nil {
		return nil, decodeError(header.PacketType, err)
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, decodeError(header.PacketType, err)
	}

	r := getBytesReader(body)
	defer putBytesReader(r)

	if _, err := packet.Decode(r, header); err != nil {
		return nil, decodeError(header.PacketType, err)
	}
	if r.Remaining() > 0 {
		return nil, decodeError(header.PacketType, fmt.Errorf("%d trailing bytes", r.Remaining()))
	}

	return packet, nil
}

// ReadPacket reads one complete packet from r.
// If maxSize is greater than 0, larger packets fail with ErrPacketTooLarge.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, decodeError(header.PacketType, err)
	}

	if maxSize > 0 && uint32(header.Size())+header.RemainingLength > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	body := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, body)
		n += rn
		if err != nil {
			return nil, n, decodeError(header.PacketType, underflow(err))
		}
	}

	packet, err := decodeBody(header, body)
	return packet, n, err
}

// WritePacket validates and writes one packet to w.
// If maxSize is greater than 0, larger packets fail with ErrPacketTooLarge.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	data, err := EncodePacket(packet)
	if err != nil {
		return 0, err
	}
	if maxSize > 0 && uint32(len(data)) > maxSize {
		return 0, ErrPacketTooLarge
	}
	return w.Write(data)
}

// EncodePacket validates packet and returns its wire form.
func EncodePacket(packet Packet) ([]byte, error) {
	if err := packet.Validate(); err != nil {
		return nil, err
	}

	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	if _, err := packet.Encode(buf); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
