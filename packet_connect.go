package mqttws

import (
	"errors"
	"io"
)

const (
	protocolName    = "MQTT"
	protocolVersion = 5
)

const (
	connectFlagReserved   byte = 0x01
	connectFlagCleanStart byte = 0x02
	connectFlagWill       byte = 0x04
	connectFlagWillRetain byte = 0x20
	connectFlagPassword   byte = 0x40
	connectFlagUsername   byte = 0x80
)

// CONNECT packet errors.
var (
	ErrInvalidProtocolName    = errors.New("invalid protocol name")
	ErrInvalidProtocolVersion = errors.New("unsupported protocol version")
	ErrInvalidConnectFlags    = errors.New("invalid connect flags")
	ErrClientIDRequired       = errors.New("client ID required with clean start false")
)

// WillMessage is the message the broker publishes when the connection ends
// without a normal DISCONNECT.
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool

	DelayInterval   uint32
	PayloadFormat   byte
	MessageExpiry   uint32
	ContentType     string
	ResponseTopic   string
	CorrelationData []byte
	UserProperties  []StringPair
}

func (m *WillMessage) properties() Properties {
	var p Properties
	p.setIfUint32(PropWillDelayInterval, m.DelayInterval)
	p.setIfByte(PropPayloadFormatIndicator, m.PayloadFormat)
	p.setIfUint32(PropMessageExpiryInterval, m.MessageExpiry)
	p.setIfString(PropContentType, m.ContentType)
	p.setIfString(PropResponseTopic, m.ResponseTopic)
	p.setIfBinary(PropCorrelationData, m.CorrelationData)
	p.addUserProperties(m.UserProperties)
	return p
}

func (m *WillMessage) applyProperties(p *Properties) {
	m.DelayInterval = p.GetUint32(PropWillDelayInterval)
	m.PayloadFormat = p.GetByte(PropPayloadFormatIndicator)
	m.MessageExpiry = p.GetUint32(PropMessageExpiryInterval)
	m.ContentType = p.GetString(PropContentType)
	m.ResponseTopic = p.GetString(PropResponseTopic)
	m.CorrelationData = p.GetBinary(PropCorrelationData)
	m.UserProperties = p.UserProperties()
}

// ConnectPacket is the CONNECT packet. Zero-valued optional fields are not sent.
type ConnectPacket struct {
	ClientID   string
	CleanStart bool
	KeepAlive  uint16

	SessionExpiryInterval uint32
	ReceiveMaximum        uint16
	MaximumPacketSize     uint32
	TopicAliasMaximum     uint16
	RequestResponseInfo   *bool
	RequestProblemInfo    *bool
	AuthMethod            string
	AuthData              []byte
	UserProperties        []StringPair

	Will *WillMessage

	Username string
	Password []byte
}

func (p *ConnectPacket) Type() PacketType { return PacketCONNECT }

func (p *ConnectPacket) properties() Properties {
	var props Properties
	props.setIfUint32(PropSessionExpiryInterval, p.SessionExpiryInterval)
	props.setIfUint16(PropReceiveMaximum, p.ReceiveMaximum)
	props.setIfUint32(PropMaximumPacketSize, p.MaximumPacketSize)
	props.setIfUint16(PropTopicAliasMaximum, p.TopicAliasMaximum)
	props.setIfBool(PropRequestResponseInfo, p.RequestResponseInfo)
	props.setIfBool(PropRequestProblemInfo, p.RequestProblemInfo)
	props.setIfString(PropAuthenticationMethod, p.AuthMethod)
	props.setIfBinary(PropAuthenticationData, p.AuthData)
	props.addUserProperties(p.UserProperties)
	return props
}

func (p *ConnectPacket) applyProperties(props *Properties) {
	p.SessionExpiryInterval = props.GetUint32(PropSessionExpiryInterval)
	p.ReceiveMaximum = props.GetUint16(PropReceiveMaximum)
	p.MaximumPacketSize = props.GetUint32(PropMaximumPacketSize)
	p.TopicAliasMaximum = props.GetUint16(PropTopicAliasMaximum)
	p.RequestResponseInfo = byteFlag(props, PropRequestResponseInfo)
	p.RequestProblemInfo = byteFlag(props, PropRequestProblemInfo)
	p.AuthMethod = props.GetString(PropAuthenticationMethod)
	p.AuthData = props.GetBinary(PropAuthenticationData)
	p.UserProperties = props.UserProperties()
}

func byteFlag(props *Properties, id PropertyID) *bool {
	if !props.Has(id) {
		return nil
	}
	v := props.GetByte(id) == 1
	return &v
}

func (p *ConnectPacket) flags() byte {
	var flags byte
	if p.CleanStart {
		flags |= connectFlagCleanStart
	}
	if p.Will != nil {
		flags |= connectFlagWill | (p.Will.QoS&0x03)<<3
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if len(p.Password) > 0 {
		flags |= connectFlagPassword
	}
	if p.Username != "" {
		flags |= connectFlagUsername
	}
	return flags
}

// Encode writes the packet to w.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytesBuffer
	if _, err := encodeString(&buf, protocolName); err != nil {
		return 0, err
	}
	buf.Write([]byte{protocolVersion, p.flags()})
	encodeUint16(&buf, p.KeepAlive)

	props := p.properties()
	if _, err := props.Encode(&buf); err != nil {
		return 0, err
	}
	if _, err := encodeString(&buf, p.ClientID); err != nil {
		return 0, err
	}

	if p.Will != nil {
		willProps := p.Will.properties()
		if _, err := willProps.Encode(&buf); err != nil {
			return 0, err
		}
		if _, err := encodeString(&buf, p.Will.Topic); err != nil {
			return 0, err
		}
		if _, err := encodeBinary(&buf, p.Will.Payload); err != nil {
			return 0, err
		}
	}

	if p.Username != "" {
		if _, err := encodeString(&buf, p.Username); err != nil {
			return 0, err
		}
	}
	if len(p.Password) > 0 {
		if _, err := encodeBinary(&buf, p.Password); err != nil {
			return 0, err
		}
	}

	return encodeFrame(w, PacketCONNECT, 0, buf.Bytes())
}

// Decode reads the packet body from r.
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNECT {
		return 0, ErrInvalidPacketType
	}

	name, total, err := decodeString(r)
	if err != nil {
		return total, err
	}
	if name != protocolName {
		return total, ErrInvalidProtocolName
	}

	version, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	if version != protocolVersion {
		return total, ErrInvalidProtocolVersion
	}

	flags, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	if flags&connectFlagReserved != 0 {
		return total, ErrInvalidConnectFlags
	}
	p.CleanStart = flags&connectFlagCleanStart != 0

	hasWill := flags&connectFlagWill != 0
	willQoS := (flags >> 3) & 0x03
	willRetain := flags&connectFlagWillRetain != 0
	if willQoS > 2 || (!hasWill && (willQoS != 0 || willRetain)) {
		return total, ErrInvalidConnectFlags
	}

	p.KeepAlive, n, err = decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}

	var props Properties
	n, err = props.Decode(r, PropCtxCONNECT)
	total += n
	if err != nil {
		return total, err
	}
	p.applyProperties(&props)

	p.ClientID, n, err = decodeString(r)
	total += n
	if err != nil {
		return total, err
	}

	if hasWill {
		will := &WillMessage{QoS: willQoS, Retain: willRetain}

		var willProps Properties
		n, err = willProps.Decode(r, PropCtxWill)
		total += n
		if err != nil {
			return total, err
		}
		will.applyProperties(&willProps)

		will.Topic, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}

		will.Payload, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
		p.Will = will
	}

	if flags&connectFlagUsername != 0 {
		p.Username, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	if flags&connectFlagPassword != 0 {
		p.Password, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Validate checks the packet contents.
func (p *ConnectPacket) Validate() error {
	if !p.CleanStart && p.ClientID == "" {
		return ErrClientIDRequired
	}
	if err := validateString(p.ClientID); err != nil {
		return err
	}
	if p.Will != nil {
		if p.Will.QoS > 2 {
			return ErrInvalidConnectFlags
		}
		if err := ValidateTopicName(p.Will.Topic); err != nil {
			return err
		}
	}
	return nil
}
