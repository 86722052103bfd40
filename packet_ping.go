package mqttws

import (
	"errors"
	"io"
)

// ErrUnexpectedBody is returned when a body-less packet carries data.
var ErrUnexpectedBody = errors.New("packet must have no body")

// PingreqPacket is the keep alive probe sent by the client.
type PingreqPacket struct{}

func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

func (p *PingreqPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, PacketPINGREQ, 0, nil)
}

func (p *PingreqPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return 0, decodeEmpty(header, PacketPINGREQ)
}

func (p *PingreqPacket) Validate() error { return nil }

// PingrespPacket is the broker's answer to PINGREQ.
type PingrespPacket struct{}

func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }

func (p *PingrespPacket) Encode(w io.Writer) (int, error) {
	return encodeFrame(w, PacketPINGRESP, 0, nil)
}

func (p *PingrespPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return 0, decodeEmpty(header, PacketPINGRESP)
}

func (p *PingrespPacket) Validate() error { return nil }

func decodeEmpty(header FixedHeader, t PacketType) error {
	if header.PacketType != t {
		return ErrInvalidPacketType
	}
	if header.RemainingLength != 0 {
		return ErrUnexpectedBody
	}
	return nil
}
