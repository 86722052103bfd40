package mqttws

import (
	"errors"
	"fmt"
	"strings"
)

// Client errors. Check with errors.Is.
var (
	ErrNotConnected   = errors.New("not connected")
	ErrClientClosed   = errors.New("client closed")
	ErrConnectTimeout = errors.New("connect timeout")
	ErrConnectionLost = errors.New("connection lost")
	ErrProtocolError  = errors.New("protocol error")
	ErrAlreadyStarted = errors.New("connect already called")
	ErrRequestTimeout = errors.New("request timeout")
	ErrNilMessage     = errors.New("message is nil")
)

// Failure categories wrapped by the typed errors below.
var (
	ErrConnectRefused   = errors.New("connect refused")
	ErrPublishFailed    = errors.New("publish failed")
	ErrSubscribeFailed  = errors.New("subscribe failed")
	ErrServerDisconnect = errors.New("server disconnect")
)

// ConnectError is returned when the broker answers CONNECT with an error
// reason code. Extract with errors.As.
type ConnectError struct {
	ReasonCode ReasonCode
	Connack    *ConnackPacket
}

func (e *ConnectError) Error() string {
	msg := "connect refused: " + e.ReasonCode.String()
	if e.Connack != nil {
		if rs := e.Connack.ReasonString(); rs != "" {
			msg += " (" + rs + ")"
		}
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return ErrConnectRefused }

// Description returns the human-readable meaning of the reason code.
func (e *ConnectError) Description() string {
	return e.ReasonCode.Description(PacketCONNACK)
}

// PublishError is returned when the broker acknowledges a publish with an
// error reason code.
type PublishError struct {
	Topic        string
	PacketID     uint16
	ReasonCode   ReasonCode
	ReasonString string
	// Ack is the PUBACK or PUBREC that carried the reason code.
	Ack Packet
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("publish to %q failed: %s", e.Topic, e.ReasonCode)
	if e.ReasonString != "" {
		msg += " (" + e.ReasonString + ")"
	}
	return msg
}

func (e *PublishError) Unwrap() error { return ErrPublishFailed }

// Description returns the human-readable meaning of the reason code.
func (e *PublishError) Description() string {
	if e.Ack == nil {
		return e.ReasonCode.Description(PacketPUBACK)
	}
	return e.ReasonCode.Description(e.Ack.Type())
}

// SubscribeError lists the filters of a SUBSCRIBE the broker refused. The
// SUBACK is still returned to the caller next to this error.
type SubscribeError struct {
	Filters     []string
	ReasonCodes []ReasonCode
}

func (e *SubscribeError) Error() string {
	parts := make([]string, len(e.Filters))
	for i, f := range e.Filters {
		parts[i] = fmt.Sprintf("%s: %s", f, e.ReasonCodes[i])
	}
	return "subscribe failed: " + strings.Join(parts, ", ")
}

func (e *SubscribeError) Unwrap() error { return ErrSubscribeFailed }

// ServerDisconnectError is the connection failure reported when the broker
// sends DISCONNECT.
type ServerDisconnectError struct {
	ReasonCode ReasonCode
	Properties *Properties
}

func (e *ServerDisconnectError) Error() string {
	msg := "server disconnect: " + e.ReasonCode.String()
	if e.Properties != nil {
		if rs := e.Properties.GetString(PropReasonString); rs != "" {
			msg += " (" + rs + ")"
		}
	}
	return msg
}

func (e *ServerDisconnectError) Unwrap() error { return ErrServerDisconnect }

// Description returns the human-readable meaning of the reason code.
func (e *ServerDisconnectError) Description() string {
	return e.ReasonCode.Description(PacketDISCONNECT)
}

// ServerReference returns the Server Reference property, if the broker
// redirected the client.
func (e *ServerDisconnectError) ServerReference() string {
	if e.Properties == nil {
		return ""
	}
	return e.Properties.GetString(PropServerReference)
}

// connectionLost wraps err with ErrConnectionLost unless it already is one.
func connectionLost(err error) error {
	if err == nil || errors.Is(err, ErrConnectionLost) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}
