package mqttws

import (
	"errors"
	"io"
)

// PacketType is the 4-bit MQTT control packet type.
type PacketType byte

// Control packet types.
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
	PacketAUTH        PacketType = 15
)

var packetTypeNames = [...]string{
	PacketCONNECT:     "CONNECT",
	PacketCONNACK:     "CONNACK",
	PacketPUBLISH:     "PUBLISH",
	PacketPUBACK:      "PUBACK",
	PacketPUBREC:      "PUBREC",
	PacketPUBREL:      "PUBREL",
	PacketPUBCOMP:     "PUBCOMP",
	PacketSUBSCRIBE:   "SUBSCRIBE",
	PacketSUBACK:      "SUBACK",
	PacketUNSUBSCRIBE: "UNSUBSCRIBE",
	PacketUNSUBACK:    "UNSUBACK",
	PacketPINGREQ:     "PINGREQ",
	PacketPINGRESP:    "PINGRESP",
	PacketDISCONNECT:  "DISCONNECT",
	PacketAUTH:        "AUTH",
}

func (p PacketType) String() string {
	if !p.Valid() {
		return "UNKNOWN"
	}
	return packetTypeNames[p]
}

// Valid reports whether p is one of the 15 defined packet types.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketAUTH
}

// Fixed header errors.
var (
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidPacketFlags = errors.New("invalid packet flags")
)

const (
	flagDUP    byte = 0x08
	flagRetain byte = 0x01
	flagPubrel byte = 0x02
)

// FixedHeader is the first one to five bytes of every control packet.
type FixedHeader struct {
	PacketType      PacketType
	Flags           byte
	RemainingLength uint32
}

// Encode writes the header byte and the remaining length.
func (h *FixedHeader) Encode(w io.Writer) (int, error) {
	if !h.PacketType.Valid() {
		return 0, ErrInvalidPacketType
	}

	var buf [1 + maxVarintBytes]byte
	buf[0] = byte(h.PacketType)<<4 | (h.Flags & 0x0F)

	n, err := putVarint(buf[1:], h.RemainingLength)
	if err != nil {
		return 0, err
	}

	return w.Write(buf[:1+n])
}

// Decode reads the header byte and the remaining length.
func (h *FixedHeader) Decode(r io.Reader) (int, error) {
	first, n, err := decodeByte(r)
	if err != nil {
		return n, err
	}

	h.PacketType = PacketType(first >> 4)
	h.Flags = first & 0x0F
	if !h.PacketType.Valid() {
		return n, ErrInvalidPacketType
	}

	length, n2, err := decodeVarint(r)
	n += n2
	if err != nil {
		return n, err
	}

	h.RemainingLength = length
	return n, h.ValidateFlags()
}

// parseFixedHeader reads a header from the front of buf without consuming it.
// ErrNeedMoreData means buf does not yet hold the whole header.
func parseFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) == 0 {
		return FixedHeader{}, 0, ErrNeedMoreData
	}

	h := FixedHeader{
		PacketType: PacketType(buf[0] >> 4),
		Flags:      buf[0] & 0x0F,
	}
	if !h.PacketType.Valid() {
		return h, 0, ErrInvalidPacketType
	}

	length, n, err := peekVarint(buf[1:])
	if err != nil {
		return h, 0, err
	}

	h.RemainingLength = length
	return h, 1 + n, nil
}

// Size returns the encoded size of the header.
func (h *FixedHeader) Size() int {
	return 1 + varintSize(h.RemainingLength)
}

// ValidateFlags checks the reserved flag bits for the packet type.
func (h *FixedHeader) ValidateFlags() error {
	switch h.PacketType {
	case PacketPUBLISH:
		if h.QoS() > 2 {
			return ErrInvalidQoS
		}
		if h.QoS() == 0 && h.DUP() {
			return ErrDupWithQoS0
		}
		return nil

	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		if h.Flags != flagPubrel {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketCONNECT, PacketCONNACK, PacketPUBACK, PacketPUBREC,
		PacketPUBCOMP, PacketSUBACK, PacketUNSUBACK, PacketPINGREQ,
		PacketPINGRESP, PacketDISCONNECT, PacketAUTH:
		if h.Flags != 0 {
			return ErrInvalidPacketFlags
		}
		return nil

	default:
		return ErrInvalidPacketType
	}
}

// DUP returns the PUBLISH duplicate delivery flag.
func (h *FixedHeader) DUP() bool {
	return h.Flags&flagDUP != 0
}

// QoS returns the PUBLISH QoS bits.
func (h *FixedHeader) QoS() byte {
	return (h.Flags >> 1) & 0x03
}

// Retain returns the PUBLISH retain flag.
func (h *FixedHeader) Retain() bool {
	return h.Flags&flagRetain != 0
}

func publishFlags(qos byte, dup, retain bool) byte {
	flags := (qos & 0x03) << 1
	if dup {
		flags |= flagDUP
	}
	if retain {
		flags |= flagRetain
	}
	return flags
}
