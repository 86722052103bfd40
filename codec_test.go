package mqttws

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withProps(pairs ...any) Properties {
	var p Properties
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Add(pairs[i].(PropertyID), pairs[i+1])
	}
	return p
}

func TestPacketRoundTrip(t *testing.T) {
	yes := true

	tests := []struct {
		name   string
		packet Packet
	}{
		{
			name: "CONNECT minimal",
			packet: &ConnectPacket{
				CleanStart: true,
				KeepAlive:  60,
			},
		},
		{
			name: "CONNECT full",
			packet: &ConnectPacket{
				ClientID:              "sensor-1",
				KeepAlive:             30,
				SessionExpiryInterval: 3600,
				ReceiveMaximum:        10,
				MaximumPacketSize:     1 << 20,
				TopicAliasMaximum:     8,
				RequestProblemInfo:    &yes,
				UserProperties:        []StringPair{{Key: "app", Value: "demo"}},
				Will: &WillMessage{
					Topic:         "sensors/1/status",
					Payload:       []byte("offline"),
					QoS:           1,
					Retain:        true,
					DelayInterval: 5,
					ContentType:   "text/plain",
				},
				Username: "user",
				Password: []byte("secret"),
			},
		},
		{
			name: "CONNACK with properties",
			packet: &ConnackPacket{
				SessionPresent: true,
				Props: withProps(
					PropAssignedClientIdentifier, "auto-42",
					PropReceiveMaximum, uint16(20),
					PropServerKeepAlive, uint16(15),
				),
			},
		},
		{
			name:   "CONNACK refused",
			packet: &ConnackPacket{ReasonCode: ReasonNotAuthorized},
		},
		{
			name: "PUBLISH QoS 0",
			packet: &PublishPacket{
				Topic:   "a/b",
				Payload: []byte("hello"),
			},
		},
		{
			name: "PUBLISH QoS 2 with properties",
			packet: &PublishPacket{
				Topic:    "a/b",
				Payload:  []byte{0x01, 0x02},
				QoS:      2,
				Retain:   true,
				DUP:      true,
				PacketID: 7,
				Props: withProps(
					PropMessageExpiryInterval, uint32(60),
					PropCorrelationData, []byte("corr"),
					PropUserProperty, StringPair{Key: "k", Value: "v"},
					PropUserProperty, StringPair{Key: "k", Value: "w"},
				),
			},
		},
		{
			name: "PUBLISH alias without topic",
			packet: &PublishPacket{
				QoS:      1,
				PacketID: 3,
				Props:    withProps(PropTopicAlias, uint16(4)),
			},
		},
		{
			name:   "PUBACK success",
			packet: &PubackPacket{PacketID: 1},
		},
		{
			name:   "PUBACK no subscribers",
			packet: &PubackPacket{PacketID: 2, ReasonCode: ReasonNoMatchingSubscribers},
		},
		{
			name: "PUBREC with reason string",
			packet: &PubrecPacket{
				PacketID:   3,
				ReasonCode: ReasonQuotaExceeded,
				Props:      withProps(PropReasonString, "slow down"),
			},
		},
		{
			name:   "PUBREL",
			packet: &PubrelPacket{PacketID: 4},
		},
		{
			name:   "PUBCOMP not found",
			packet: &PubcompPacket{PacketID: 5, ReasonCode: ReasonPacketIDNotFound},
		},
		{
			name: "SUBSCRIBE",
			packet: &SubscribePacket{
				PacketID:               9,
				SubscriptionIdentifier: 12,
				Subscriptions: []Subscription{
					{TopicFilter: "a/+", QoS: 1, NoLocal: true},
					{TopicFilter: "b/#", QoS: 2, RetainAsPublished: true, RetainHandling: RetainDoNotSendOnSubscribe},
				},
			},
		},
		{
			name: "SUBACK",
			packet: &SubackPacket{
				PacketID:    9,
				ReasonCodes: []ReasonCode{ReasonGrantedQoS1, ReasonNotAuthorized},
			},
		},
		{
			name: "UNSUBSCRIBE",
			packet: &UnsubscribePacket{
				PacketID:       10,
				TopicFilters:   []string{"a/+", "b/#"},
				UserProperties: []StringPair{{Key: "why", Value: "done"}},
			},
		},
		{
			name: "UNSUBACK",
			packet: &UnsubackPacket{
				PacketID:    10,
				ReasonCodes: []ReasonCode{ReasonSuccess, ReasonNoSubscriptionExisted},
			},
		},
		{
			name:   "PINGREQ",
			packet: &PingreqPacket{},
		},
		{
			name:   "PINGRESP",
			packet: &PingrespPacket{},
		},
		{
			name:   "DISCONNECT normal",
			packet: &DisconnectPacket{},
		},
		{
			name: "DISCONNECT server moved",
			packet: &DisconnectPacket{
				ReasonCode: ReasonServerMoved,
				Props:      withProps(PropServerReference, "other.example.com"),
			},
		},
		{
			name: "AUTH continue",
			packet: &AuthPacket{
				ReasonCode: ReasonContinueAuth,
				Props:      withProps(PropAuthenticationMethod, "SCRAM-SHA-256"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePacket(tt.packet)
			require.NoError(t, err)

			got, n, err := ReadPacket(bytes.NewReader(data), 0)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, tt.packet, got)
		})
	}
}

func TestAckShortForm(t *testing.T) {
	data, err := EncodePacket(&PubackPacket{PacketID: 0x0102})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x02, 0x01, 0x02}, data)

	data, err = EncodePacket(&PubrelPacket{PacketID: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0x02, 0x00, 0x01}, data)
}

func TestDisconnectShortForm(t *testing.T) {
	data, err := EncodePacket(&DisconnectPacket{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x00}, data)

	data, err = EncodePacket(&DisconnectPacket{ReasonCode: ReasonDisconnectWithWillMessage})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x01, 0x04}, data)
}

func TestReadPacketErrors(t *testing.T) {
	tests := []struct {
		name    string
		wire    []byte
		maxSize uint32
		wantErr error
	}{
		{
			name:    "reserved type",
			wire:    []byte{0x00, 0x00},
			wantErr: ErrInvalidPacketType,
		},
		{
			name:    "bad PUBREL flags",
			wire:    []byte{0x60, 0x02, 0x00, 0x01},
			wantErr: ErrInvalidPacketFlags,
		},
		{
			name:    "QoS 3",
			wire:    []byte{0x36, 0x03, 0x00, 0x01, 'a'},
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "truncated body",
			wire:    []byte{0x40, 0x02, 0x00},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "packet id zero",
			wire:    []byte{0x40, 0x02, 0x00, 0x00},
			wantErr: ErrPacketIDRequired,
		},
		{
			name:    "trailing bytes",
			wire:    []byte{0x40, 0x05, 0x00, 0x01, 0x00, 0x00, 0xFF},
			wantErr: ErrMalformedPacket,
		},
		{
			name:    "invalid reason code",
			wire:    []byte{0x40, 0x03, 0x00, 0x01, 0x04},
			wantErr: ErrInvalidReasonCode,
		},
		{
			name:    "property not allowed",
			wire:    []byte{0x40, 0x07, 0x00, 0x01, 0x00, 0x03, 0x21, 0x00, 0x01},
			wantErr: ErrPropertyNotAllowed,
		},
		{
			name:    "too large",
			wire:    []byte{0x30, 0x08, 0x00, 0x01, 'a', 0x00, 'x', 'y', 'z', 'w'},
			maxSize: 8,
			wantErr: ErrPacketTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadPacket(bytes.NewReader(tt.wire), tt.maxSize)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeErrorMatchesMalformed(t *testing.T) {
	_, err := decodeBody(FixedHeader{PacketType: PacketPUBACK, RemainingLength: 1}, []byte{0x00})
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, PacketPUBACK, de.PacketType)
	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "PUBACK")
}

func TestWritePacket(t *testing.T) {
	var buf bytes.Buffer
	n, err := WritePacket(&buf, &PingreqPacket{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0xC0, 0x00}, buf.Bytes())

	buf.Reset()
	_, err = WritePacket(&buf, &PublishPacket{Topic: "a", Payload: make([]byte, 32)}, 16)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Zero(t, buf.Len())

	_, err = WritePacket(&buf, &PublishPacket{QoS: 1, Topic: "a"}, 0)
	assert.ErrorIs(t, err, ErrPacketIDRequired)
}
