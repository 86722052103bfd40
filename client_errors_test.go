package mqttws

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	err := error(&ConnectError{
		ReasonCode: ReasonBadUserNameOrPassword,
		Connack: &ConnackPacket{
			ReasonCode: ReasonBadUserNameOrPassword,
			Props:      withProps(PropReasonString, "wrong password"),
		},
	})

	assert.ErrorIs(t, err, ErrConnectRefused)
	assert.Equal(t, "connect refused: Bad User Name or Password (wrong password)", err.Error())

	var ce *ConnectError
	require.True(t, errors.As(fmt.Errorf("dial: %w", err), &ce))
	assert.Equal(t, "The server does not accept the user name or password.", ce.Description())
}

func TestPublishError(t *testing.T) {
	tests := []struct {
		name     string
		err      *PublishError
		wantText string
		wantDesc string
	}{
		{
			name:     "PUBACK",
			err:      &PublishError{Topic: "a", PacketID: 1, ReasonCode: ReasonNotAuthorized, Ack: &PubackPacket{}},
			wantText: `publish to "a" failed: Not authorized`,
			wantDesc: "The PUBLISH is not authorized.",
		},
		{
			name:     "PUBREC with reason string",
			err:      &PublishError{Topic: "b", ReasonCode: ReasonQuotaExceeded, ReasonString: "full", Ack: &PubrecPacket{}},
			wantText: `publish to "b" failed: Quota exceeded (full)`,
			wantDesc: "An implementation or administrative limit has been exceeded.",
		},
		{
			name:     "no ack",
			err:      &PublishError{Topic: "c", ReasonCode: ReasonImplSpecificError},
			wantText: `publish to "c" failed: Implementation specific error`,
			wantDesc: "The PUBLISH is valid but the receiver is not willing to accept it.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, ErrPublishFailed)
			assert.Equal(t, tt.wantText, tt.err.Error())
			assert.Equal(t, tt.wantDesc, tt.err.Description())
		})
	}
}

func TestSubscribeError(t *testing.T) {
	err := &SubscribeError{
		Filters:     []string{"a/#", "b"},
		ReasonCodes: []ReasonCode{ReasonNotAuthorized, ReasonWildcardSubsNotSupported},
	}
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Equal(t, "subscribe failed: a/#: Not authorized, b: Wildcard Subscriptions not supported", err.Error())
}

func TestServerDisconnectError(t *testing.T) {
	props := withProps(PropReasonString, "maintenance", PropServerReference, "backup:8080")
	err := &ServerDisconnectError{ReasonCode: ReasonUseAnotherServer, Properties: &props}

	assert.ErrorIs(t, err, ErrServerDisconnect)
	assert.Equal(t, "server disconnect: Use another server (maintenance)", err.Error())
	assert.Equal(t, "backup:8080", err.ServerReference())
	assert.Equal(t, "The client should temporarily use another server.", err.Description())

	bare := &ServerDisconnectError{ReasonCode: ReasonServerShuttingDown}
	assert.Empty(t, bare.ServerReference())
	assert.Equal(t, "server disconnect: Server shutting down", bare.Error())
}

func TestConnectionLost(t *testing.T) {
	assert.NoError(t, connectionLost(nil))

	err := connectionLost(io.EOF)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, io.EOF)

	assert.Same(t, err, connectionLost(err))
}
