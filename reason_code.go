package mqttws

import (
	"errors"
	"fmt"
)

// ReasonCode is an MQTT v5.0 reason code. Values are shared across packet
// types; Description gives the meaning in a given packet.
type ReasonCode byte

// Reason codes.
const (
	ReasonSuccess                    ReasonCode = 0x00
	ReasonNormalDisconnection        ReasonCode = 0x00
	ReasonGrantedQoS0                ReasonCode = 0x00
	ReasonGrantedQoS1                ReasonCode = 0x01
	ReasonGrantedQoS2                ReasonCode = 0x02
	ReasonDisconnectWithWillMessage  ReasonCode = 0x04
	ReasonNoMatchingSubscribers      ReasonCode = 0x10
	ReasonNoSubscriptionExisted      ReasonCode = 0x11
	ReasonContinueAuth               ReasonCode = 0x18
	ReasonReAuth                     ReasonCode = 0x19
	ReasonUnspecifiedError           ReasonCode = 0x80
	ReasonMalformedPacket            ReasonCode = 0x81
	ReasonProtocolError              ReasonCode = 0x82
	ReasonImplSpecificError          ReasonCode = 0x83
	ReasonUnsupportedProtocolVersion ReasonCode = 0x84
	ReasonClientIDNotValid           ReasonCode = 0x85
	ReasonBadUserNameOrPassword      ReasonCode = 0x86
	ReasonNotAuthorized              ReasonCode = 0x87
	ReasonServerUnavailable          ReasonCode = 0x88
	ReasonServerBusy                 ReasonCode = 0x89
	ReasonBanned                     ReasonCode = 0x8A
	ReasonServerShuttingDown         ReasonCode = 0x8B
	ReasonBadAuthMethod              ReasonCode = 0x8C
	ReasonKeepAliveTimeout           ReasonCode = 0x8D
	ReasonSessionTakenOver           ReasonCode = 0x8E
	ReasonTopicFilterInvalid         ReasonCode = 0x8F
	ReasonTopicNameInvalid           ReasonCode = 0x90
	ReasonPacketIDInUse              ReasonCode = 0x91
	ReasonPacketIDNotFound           ReasonCode = 0x92
	ReasonReceiveMaxExceeded         ReasonCode = 0x93
	ReasonTopicAliasInvalid          ReasonCode = 0x94
	ReasonPacketTooLarge             ReasonCode = 0x95
	ReasonMessageRateTooHigh         ReasonCode = 0x96
	ReasonQuotaExceeded              ReasonCode = 0x97
	ReasonAdminAction                ReasonCode = 0x98
	ReasonPayloadFormatInvalid       ReasonCode = 0x99
	ReasonRetainNotSupported         ReasonCode = 0x9A
	ReasonQoSNotSupported            ReasonCode = 0x9B
	ReasonUseAnotherServer           ReasonCode = 0x9C
	ReasonServerMoved                ReasonCode = 0x9D
	ReasonSharedSubsNotSupported     ReasonCode = 0x9E
	ReasonConnectionRateExceeded     ReasonCode = 0x9F
	ReasonMaxConnectTime             ReasonCode = 0xA0
	ReasonSubIDsNotSupported         ReasonCode = 0xA1
	ReasonWildcardSubsNotSupported   ReasonCode = 0xA2
)

// ErrInvalidReasonCode is returned for a reason code the packet type does not define.
var ErrInvalidReasonCode = errors.New("invalid reason code for packet type")

var reasonCodeNames = map[ReasonCode]string{
	ReasonSuccess:                    "Success",
	ReasonGrantedQoS1:                "Granted QoS 1",
	ReasonGrantedQoS2:                "Granted QoS 2",
	ReasonDisconnectWithWillMessage:  "Disconnect with Will Message",
	ReasonNoMatchingSubscribers:      "No matching subscribers",
	ReasonNoSubscriptionExisted:      "No subscription existed",
	ReasonContinueAuth:               "Continue authentication",
	ReasonReAuth:                     "Re-authenticate",
	ReasonUnspecifiedError:           "Unspecified error",
	ReasonMalformedPacket:            "Malformed Packet",
	ReasonProtocolError:              "Protocol Error",
	ReasonImplSpecificError:          "Implementation specific error",
	ReasonUnsupportedProtocolVersion: "Unsupported Protocol Version",
	ReasonClientIDNotValid:           "Client Identifier not valid",
	ReasonBadUserNameOrPassword:      "Bad User Name or Password",
	ReasonNotAuthorized:              "Not authorized",
	ReasonServerUnavailable:          "Server unavailable",
	ReasonServerBusy:                 "Server busy",
	ReasonBanned:                     "Banned",
	ReasonServerShuttingDown:         "Server shutting down",
	ReasonBadAuthMethod:              "Bad authentication method",
	ReasonKeepAliveTimeout:           "Keep Alive timeout",
	ReasonSessionTakenOver:           "Session taken over",
	ReasonTopicFilterInvalid:         "Topic Filter invalid",
	ReasonTopicNameInvalid:           "Topic Name invalid",
	ReasonPacketIDInUse:              "Packet Identifier in use",
	ReasonPacketIDNotFound:           "Packet Identifier not found",
	ReasonReceiveMaxExceeded:         "Receive Maximum exceeded",
	ReasonTopicAliasInvalid:          "Topic Alias invalid",
	ReasonPacketTooLarge:             "Packet too large",
	ReasonMessageRateTooHigh:         "Message rate too high",
	ReasonQuotaExceeded:              "Quota exceeded",
	ReasonAdminAction:                "Administrative action",
	ReasonPayloadFormatInvalid:       "Payload format invalid",
	ReasonRetainNotSupported:         "Retain not supported",
	ReasonQoSNotSupported:            "QoS not supported",
	ReasonUseAnotherServer:           "Use another server",
	ReasonServerMoved:                "Server moved",
	ReasonSharedSubsNotSupported:     "Shared Subscriptions not supported",
	ReasonConnectionRateExceeded:     "Connection rate exceeded",
	ReasonMaxConnectTime:             "Maximum connect time",
	ReasonSubIDsNotSupported:         "Subscription Identifiers not supported",
	ReasonWildcardSubsNotSupported:   "Wildcard Subscriptions not supported",
}

// String returns the protocol name of the code.
func (r ReasonCode) String() string {
	if s, ok := reasonCodeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(0x%02X)", byte(r))
}

// IsError reports whether r signals failure (0x80 and above).
func (r ReasonCode) IsError() bool {
	return r >= 0x80
}

// IsSuccess reports whether r signals success.
func (r ReasonCode) IsSuccess() bool {
	return r < 0x80
}

// Descriptions shared by every packet type unless overridden below.
var commonDescriptions = map[ReasonCode]string{
	ReasonUnspecifiedError:       "The sender does not wish to reveal the reason, or none of the other reason codes apply.",
	ReasonMalformedPacket:        "The received packet could not be parsed.",
	ReasonProtocolError:          "An unexpected or out of order packet was received.",
	ReasonImplSpecificError:      "The packet is valid but cannot be processed by this implementation.",
	ReasonNotAuthorized:          "The request is not authorized.",
	ReasonServerBusy:             "The server is busy and cannot continue processing requests from this client.",
	ReasonTopicFilterInvalid:     "The topic filter is correctly formed but is not accepted.",
	ReasonTopicNameInvalid:       "The topic name is correctly formed but is not accepted.",
	ReasonPacketIDInUse:          "The packet identifier is already in use.",
	ReasonPacketIDNotFound:       "The packet identifier is not known.",
	ReasonPacketTooLarge:         "The packet size is greater than the maximum packet size.",
	ReasonQuotaExceeded:          "An implementation or administrative limit has been exceeded.",
	ReasonPayloadFormatInvalid:   "The payload does not match the payload format indicator.",
	ReasonQoSNotSupported:        "The requested QoS is greater than the maximum QoS of the server.",
	ReasonUseAnotherServer:       "The client should temporarily use another server.",
	ReasonServerMoved:            "The client should permanently use another server.",
	ReasonSharedSubsNotSupported: "The server does not support shared subscriptions.",
	ReasonConnectionRateExceeded: "The connection rate limit has been exceeded.",
}

var packetDescriptions = map[PacketType]map[ReasonCode]string{
	PacketCONNACK: {
		ReasonSuccess:                    "The connection is accepted.",
		ReasonMalformedPacket:            "Data within the CONNECT packet could not be parsed.",
		ReasonProtocolError:              "Data in the CONNECT packet does not conform to the protocol.",
		ReasonImplSpecificError:          "The CONNECT is valid but is not accepted by this server.",
		ReasonUnsupportedProtocolVersion: "The server does not support the requested protocol version.",
		ReasonClientIDNotValid:           "The client identifier is a valid string but is not allowed by the server.",
		ReasonBadUserNameOrPassword:      "The server does not accept the user name or password.",
		ReasonNotAuthorized:              "The client is not authorized to connect.",
		ReasonServerUnavailable:          "The server is not available.",
		ReasonServerBusy:                 "The server is busy. Try again later.",
		ReasonBanned:                     "This client has been banned by administrative action.",
		ReasonBadAuthMethod:              "The authentication method is not supported or does not match the one in use.",
		ReasonTopicNameInvalid:           "The will topic name is correctly formed but is not accepted by this server.",
		ReasonPacketTooLarge:             "The CONNECT packet exceeded the maximum permissible size.",
		ReasonPayloadFormatInvalid:       "The will payload does not match the payload format indicator.",
		ReasonRetainNotSupported:         "The server does not support retained messages and will retain was set.",
		ReasonQoSNotSupported:            "The server does not support the will QoS.",
	},
	PacketPUBACK: {
		ReasonSuccess:               "The message is accepted. Publication of the QoS 1 message proceeds.",
		ReasonNoMatchingSubscribers: "The message is accepted but there are no subscribers.",
		ReasonImplSpecificError:     "The PUBLISH is valid but the receiver is not willing to accept it.",
		ReasonNotAuthorized:         "The PUBLISH is not authorized.",
	},
	PacketPUBREC: {
		ReasonSuccess:               "The message is accepted. Publication of the QoS 2 message proceeds.",
		ReasonNoMatchingSubscribers: "The message is accepted but there are no subscribers.",
		ReasonImplSpecificError:     "The PUBLISH is valid but the receiver is not willing to accept it.",
		ReasonNotAuthorized:         "The PUBLISH is not authorized.",
	},
	PacketPUBREL: {
		ReasonSuccess:          "The message is released.",
		ReasonPacketIDNotFound: "The packet identifier is not known. This is normal during recovery.",
	},
	PacketPUBCOMP: {
		ReasonSuccess:          "The packet identifier is released. Publication of the QoS 2 message is complete.",
		ReasonPacketIDNotFound: "The packet identifier is not known. This is normal during recovery.",
	},
	PacketSUBACK: {
		ReasonGrantedQoS0:              "The subscription is accepted with a maximum QoS of 0.",
		ReasonGrantedQoS1:              "The subscription is accepted with a maximum QoS of 1.",
		ReasonGrantedQoS2:              "The subscription is accepted with a maximum QoS of 2.",
		ReasonImplSpecificError:        "The SUBSCRIBE is valid but the server does not accept it.",
		ReasonNotAuthorized:            "The client is not authorized to make this subscription.",
		ReasonTopicFilterInvalid:       "The topic filter is correctly formed but is not allowed for this client.",
		ReasonSubIDsNotSupported:       "The server does not support subscription identifiers.",
		ReasonWildcardSubsNotSupported: "The server does not support wildcard subscriptions.",
	},
	PacketUNSUBACK: {
		ReasonSuccess:               "The subscription is deleted.",
		ReasonNoSubscriptionExisted: "No matching topic filter is in use by the client.",
		ReasonImplSpecificError:     "The UNSUBSCRIBE is valid but the server does not accept it.",
		ReasonNotAuthorized:         "The client is not authorized to unsubscribe.",
		ReasonTopicFilterInvalid:    "The topic filter is correctly formed but is not allowed for this client.",
	},
	PacketDISCONNECT: {
		ReasonNormalDisconnection:       "Close the connection normally. Do not send the will message.",
		ReasonDisconnectWithWillMessage: "The client wishes to disconnect but requires the server to publish its will message.",
		ReasonServerShuttingDown:        "The server is shutting down.",
		ReasonKeepAliveTimeout:          "No packet was received for 1.5 times the keep alive time.",
		ReasonSessionTakenOver:          "Another connection using the same client identifier has connected.",
		ReasonReceiveMaxExceeded:        "More publications than receive maximum are awaiting acknowledgement.",
		ReasonTopicAliasInvalid:         "A PUBLISH carried a topic alias greater than the topic alias maximum.",
		ReasonMessageRateTooHigh:        "The received data rate is too high.",
		ReasonAdminAction:               "The connection is closed by administrative action.",
		ReasonRetainNotSupported:        "The server does not support retained messages.",
		ReasonMaxConnectTime:            "The maximum connection time for this connection has been exceeded.",
		ReasonSubIDsNotSupported:        "The server does not support subscription identifiers.",
		ReasonWildcardSubsNotSupported:  "The server does not support wildcard subscriptions.",
	},
	PacketAUTH: {
		ReasonSuccess:      "Authentication is successful.",
		ReasonContinueAuth: "Continue the authentication with another step.",
		ReasonReAuth:       "Initiate a re-authentication.",
	},
}

// Description returns the meaning of r when it appears in a packet of type t,
// or an empty string when t does not define r.
func (r ReasonCode) Description(t PacketType) string {
	if !r.ValidFor(t) {
		return ""
	}
	if s, ok := packetDescriptions[t][r]; ok {
		return s
	}
	return commonDescriptions[r]
}

func reasonSet(codes ...ReasonCode) map[ReasonCode]struct{} {
	set := make(map[ReasonCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

var publishAckReasons = reasonSet(
	ReasonSuccess, ReasonNoMatchingSubscribers, ReasonUnspecifiedError,
	ReasonImplSpecificError, ReasonNotAuthorized, ReasonTopicNameInvalid,
	ReasonPacketIDInUse, ReasonQuotaExceeded, ReasonPayloadFormatInvalid,
)

var releaseReasons = reasonSet(ReasonSuccess, ReasonPacketIDNotFound)

var validReasons = map[PacketType]map[ReasonCode]struct{}{
	PacketCONNACK: reasonSet(
		ReasonSuccess, ReasonUnspecifiedError, ReasonMalformedPacket, ReasonProtocolError,
		ReasonImplSpecificError, ReasonUnsupportedProtocolVersion, ReasonClientIDNotValid,
		ReasonBadUserNameOrPassword, ReasonNotAuthorized, ReasonServerUnavailable,
		ReasonServerBusy, ReasonBanned, ReasonBadAuthMethod, ReasonTopicNameInvalid,
		ReasonPacketTooLarge, ReasonQuotaExceeded, ReasonPayloadFormatInvalid,
		ReasonRetainNotSupported, ReasonQoSNotSupported, ReasonUseAnotherServer,
		ReasonServerMoved, ReasonConnectionRateExceeded,
	),
	PacketPUBACK:  publishAckReasons,
	PacketPUBREC:  publishAckReasons,
	PacketPUBREL:  releaseReasons,
	PacketPUBCOMP: releaseReasons,
	PacketSUBACK: reasonSet(
		ReasonGrantedQoS0, ReasonGrantedQoS1, ReasonGrantedQoS2, ReasonUnspecifiedError,
		ReasonImplSpecificError, ReasonNotAuthorized, ReasonTopicFilterInvalid,
		ReasonPacketIDInUse, ReasonQuotaExceeded, ReasonSharedSubsNotSupported,
		ReasonSubIDsNotSupported, ReasonWildcardSubsNotSupported,
	),
	PacketUNSUBACK: reasonSet(
		ReasonSuccess, ReasonNoSubscriptionExisted, ReasonUnspecifiedError,
		ReasonImplSpecificError, ReasonNotAuthorized, ReasonTopicFilterInvalid,
		ReasonPacketIDInUse,
	),
	PacketDISCONNECT: reasonSet(
		ReasonNormalDisconnection, ReasonDisconnectWithWillMessage, ReasonUnspecifiedError,
		ReasonMalformedPacket, ReasonProtocolError, ReasonImplSpecificError,
		ReasonNotAuthorized, ReasonServerBusy, ReasonServerShuttingDown,
		ReasonKeepAliveTimeout, ReasonSessionTakenOver, ReasonTopicFilterInvalid,
		ReasonTopicNameInvalid, ReasonReceiveMaxExceeded, ReasonTopicAliasInvalid,
		ReasonPacketTooLarge, ReasonMessageRateTooHigh, ReasonQuotaExceeded,
		ReasonAdminAction, ReasonPayloadFormatInvalid, ReasonRetainNotSupported,
		ReasonQoSNotSupported, ReasonUseAnotherServer, ReasonServerMoved,
		ReasonSharedSubsNotSupported, ReasonConnectionRateExceeded, ReasonMaxConnectTime,
		ReasonSubIDsNotSupported, ReasonWildcardSubsNotSupported,
	),
	PacketAUTH: reasonSet(ReasonSuccess, ReasonContinueAuth, ReasonReAuth),
}

// ValidFor reports whether packet type t defines r.
func (r ReasonCode) ValidFor(t PacketType) bool {
	_, ok := validReasons[t][r]
	return ok
}
