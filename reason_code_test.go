package mqttws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonCodeValidFor(t *testing.T) {
	tests := []struct {
		name   string
		code   ReasonCode
		packet PacketType
		valid  bool
	}{
		{name: "success in PUBACK", code: ReasonSuccess, packet: PacketPUBACK, valid: true},
		{name: "granted QoS 2 in SUBACK", code: ReasonGrantedQoS2, packet: PacketSUBACK, valid: true},
		{name: "granted QoS 2 in PUBACK", code: ReasonGrantedQoS2, packet: PacketPUBACK},
		{name: "not found in PUBREL", code: ReasonPacketIDNotFound, packet: PacketPUBREL, valid: true},
		{name: "quota in PUBREL", code: ReasonQuotaExceeded, packet: PacketPUBREL},
		{name: "banned in CONNACK", code: ReasonBanned, packet: PacketCONNACK, valid: true},
		{name: "banned in DISCONNECT", code: ReasonBanned, packet: PacketDISCONNECT},
		{name: "will in DISCONNECT", code: ReasonDisconnectWithWillMessage, packet: PacketDISCONNECT, valid: true},
		{name: "re-auth in AUTH", code: ReasonReAuth, packet: PacketAUTH, valid: true},
		{name: "anything in PINGREQ", code: ReasonSuccess, packet: PacketPINGREQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.code.ValidFor(tt.packet))
		})
	}
}

func TestReasonCodeDescription(t *testing.T) {
	assert.Equal(t, "The connection is accepted.", ReasonSuccess.Description(PacketCONNACK))
	assert.Equal(t, "The subscription is accepted with a maximum QoS of 1.", ReasonGrantedQoS1.Description(PacketSUBACK))
	assert.Equal(t, "The request is not authorized.", ReasonNotAuthorized.Description(PacketDISCONNECT))
	assert.Equal(t, "The client is not authorized to connect.", ReasonNotAuthorized.Description(PacketCONNACK))
	assert.Empty(t, ReasonBanned.Description(PacketPUBACK))
}

func TestReasonCodeString(t *testing.T) {
	assert.Equal(t, "Not authorized", ReasonNotAuthorized.String())
	assert.Equal(t, "Reason(0x7F)", ReasonCode(0x7F).String())

	assert.True(t, ReasonUnspecifiedError.IsError())
	assert.False(t, ReasonNoMatchingSubscribers.IsError())
	assert.True(t, ReasonGrantedQoS1.IsSuccess())
}
