package mqttws

import (
	"errors"
	"fmt"
	"io"
)

// PropertyID is an MQTT v5.0 property identifier.
type PropertyID byte

// Property identifiers.
const (
	PropPayloadFormatIndicator   PropertyID = 0x01
	PropMessageExpiryInterval    PropertyID = 0x02
	PropContentType              PropertyID = 0x03
	PropResponseTopic            PropertyID = 0x08
	PropCorrelationData          PropertyID = 0x09
	PropSubscriptionIdentifier   PropertyID = 0x0B
	PropSessionExpiryInterval    PropertyID = 0x11
	PropAssignedClientIdentifier PropertyID = 0x12
	PropServerKeepAlive          PropertyID = 0x13
	PropAuthenticationMethod     PropertyID = 0x15
	PropAuthenticationData       PropertyID = 0x16
	PropRequestProblemInfo       PropertyID = 0x17
	PropWillDelayInterval        PropertyID = 0x18
	PropRequestResponseInfo      PropertyID = 0x19
	PropResponseInformation      PropertyID = 0x1A
	PropServerReference          PropertyID = 0x1C
	PropReasonString             PropertyID = 0x1F
	PropReceiveMaximum           PropertyID = 0x21
	PropTopicAliasMaximum        PropertyID = 0x22
	PropTopicAlias               PropertyID = 0x23
	PropMaximumQoS               PropertyID = 0x24
	PropRetainAvailable          PropertyID = 0x25
	PropUserProperty             PropertyID = 0x26
	PropMaximumPacketSize        PropertyID = 0x27
	PropWildcardSubAvailable     PropertyID = 0x28
	PropSubscriptionIDAvailable  PropertyID = 0x29
	PropSharedSubAvailable       PropertyID = 0x2A
)

// PropertyType is the wire data type of a property value.
type PropertyType byte

const (
	PropTypeByte PropertyType = iota
	PropTypeTwoByteInt
	PropTypeFourByteInt
	PropTypeVarInt
	PropTypeString
	PropTypeBinary
	PropTypeStringPair
)

type propertyInfo struct {
	name     string
	typ      PropertyType
	repeated bool
}

var propertyTable = map[PropertyID]propertyInfo{
	PropPayloadFormatIndicator:   {name: "Payload Format Indicator", typ: PropTypeByte},
	PropMessageExpiryInterval:    {name: "Message Expiry Interval", typ: PropTypeFourByteInt},
	PropContentType:              {name: "Content Type", typ: PropTypeString},
	PropResponseTopic:            {name: "Response Topic", typ: PropTypeString},
	PropCorrelationData:          {name: "Correlation Data", typ: PropTypeBinary},
	PropSubscriptionIdentifier:   {name: "Subscription Identifier", typ: PropTypeVarInt, repeated: true},
	PropSessionExpiryInterval:    {name: "Session Expiry Interval", typ: PropTypeFourByteInt},
	PropAssignedClientIdentifier: {name: "Assigned Client Identifier", typ: PropTypeString},
	PropServerKeepAlive:          {name: "Server Keep Alive", typ: PropTypeTwoByteInt},
	PropAuthenticationMethod:     {name: "Authentication Method", typ: PropTypeString},
	PropAuthenticationData:       {name: "Authentication Data", typ: PropTypeBinary},
	PropRequestProblemInfo:       {name: "Request Problem Information", typ: PropTypeByte},
	PropWillDelayInterval:        {name: "Will Delay Interval", typ: PropTypeFourByteInt},
	PropRequestResponseInfo:      {name: "Request Response Information", typ: PropTypeByte},
	PropResponseInformation:      {name: "Response Information", typ: PropTypeString},
	PropServerReference:          {name: "Server Reference", typ: PropTypeString},
	PropReasonString:             {name: "Reason String", typ: PropTypeString},
	PropReceiveMaximum:           {name: "Receive Maximum", typ: PropTypeTwoByteInt},
	PropTopicAliasMaximum:        {name: "Topic Alias Maximum", typ: PropTypeTwoByteInt},
	PropTopicAlias:               {name: "Topic Alias", typ: PropTypeTwoByteInt},
	PropMaximumQoS:               {name: "Maximum QoS", typ: PropTypeByte},
	PropRetainAvailable:          {name: "Retain Available", typ: PropTypeByte},
	PropUserProperty:             {name: "User Property", typ: PropTypeStringPair, repeated: true},
	PropMaximumPacketSize:        {name: "Maximum Packet Size", typ: PropTypeFourByteInt},
	PropWildcardSubAvailable:     {name: "Wildcard Subscription Available", typ: PropTypeByte},
	PropSubscriptionIDAvailable:  {name: "Subscription Identifier Available", typ: PropTypeByte},
	PropSharedSubAvailable:       {name: "Shared Subscription Available", typ: PropTypeByte},
}

func (p PropertyID) String() string {
	if info, ok := propertyTable[p]; ok {
		return info.name
	}
	return fmt.Sprintf("Property(0x%02X)", byte(p))
}

// PropertyType returns the wire type for p.
func (p PropertyID) PropertyType() PropertyType {
	return propertyTable[p].typ
}

// PropertyContext selects which property identifiers a property list may carry.
type PropertyContext byte

const (
	PropCtxCONNECT PropertyContext = iota
	PropCtxCONNACK
	PropCtxPUBLISH
	PropCtxPUBACK
	PropCtxPUBREC
	PropCtxPUBREL
	PropCtxPUBCOMP
	PropCtxSUBSCRIBE
	PropCtxSUBACK
	PropCtxUNSUBSCRIBE
	PropCtxUNSUBACK
	PropCtxDISCONNECT
	PropCtxAUTH
	PropCtxWill
)

var propertyContextNames = [...]string{
	PropCtxCONNECT:     "CONNECT",
	PropCtxCONNACK:     "CONNACK",
	PropCtxPUBLISH:     "PUBLISH",
	PropCtxPUBACK:      "PUBACK",
	PropCtxPUBREC:      "PUBREC",
	PropCtxPUBREL:      "PUBREL",
	PropCtxPUBCOMP:     "PUBCOMP",
	PropCtxSUBSCRIBE:   "SUBSCRIBE",
	PropCtxSUBACK:      "SUBACK",
	PropCtxUNSUBSCRIBE: "UNSUBSCRIBE",
	PropCtxUNSUBACK:    "UNSUBACK",
	PropCtxDISCONNECT:  "DISCONNECT",
	PropCtxAUTH:        "AUTH",
	PropCtxWill:        "Will",
}

func (c PropertyContext) String() string {
	if int(c) < len(propertyContextNames) {
		return propertyContextNames[c]
	}
	return "UNKNOWN"
}

func idSet(ids ...PropertyID) map[PropertyID]struct{} {
	set := make(map[PropertyID]struct{}, len(ids)+1)
	set[PropUserProperty] = struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

var ackProperties = idSet(PropReasonString)

var allowedProperties = map[PropertyContext]map[PropertyID]struct{}{
	PropCtxCONNECT: idSet(
		PropSessionExpiryInterval, PropReceiveMaximum, PropMaximumPacketSize,
		PropTopicAliasMaximum, PropRequestResponseInfo, PropRequestProblemInfo,
		PropAuthenticationMethod, PropAuthenticationData,
	),
	PropCtxCONNACK: idSet(
		PropSessionExpiryInterval, PropReceiveMaximum, PropMaximumQoS,
		PropRetainAvailable, PropMaximumPacketSize, PropAssignedClientIdentifier,
		PropTopicAliasMaximum, PropReasonString, PropWildcardSubAvailable,
		PropSubscriptionIDAvailable, PropSharedSubAvailable, PropServerKeepAlive,
		PropResponseInformation, PropServerReference, PropAuthenticationMethod,
		PropAuthenticationData,
	),
	PropCtxPUBLISH: idSet(
		PropPayloadFormatIndicator, PropMessageExpiryInterval, PropTopicAlias,
		PropResponseTopic, PropCorrelationData, PropSubscriptionIdentifier,
		PropContentType,
	),
	PropCtxPUBACK:      ackProperties,
	PropCtxPUBREC:      ackProperties,
	PropCtxPUBREL:      ackProperties,
	PropCtxPUBCOMP:     ackProperties,
	PropCtxSUBSCRIBE:   idSet(PropSubscriptionIdentifier),
	PropCtxSUBACK:      ackProperties,
	PropCtxUNSUBSCRIBE: idSet(),
	PropCtxUNSUBACK:    ackProperties,
	PropCtxDISCONNECT:  idSet(PropSessionExpiryInterval, PropReasonString, PropServerReference),
	PropCtxAUTH:        idSet(PropAuthenticationMethod, PropAuthenticationData, PropReasonString),
	PropCtxWill: idSet(
		PropWillDelayInterval, PropPayloadFormatIndicator, PropMessageExpiryInterval,
		PropContentType, PropResponseTopic, PropCorrelationData,
	),
}

// Property errors.
var (
	ErrUnknownPropertyID  = errors.New("unknown property identifier")
	ErrDuplicateProperty  = errors.New("property must not be included more than once")
	ErrPropertyNotAllowed = errors.New("property not allowed in packet")
	ErrPropertyLength     = errors.New("property length exceeds packet")
)

// Properties is an ordered property list.
type Properties struct {
	props []property
}

type property struct {
	id    PropertyID
	value any
}

// Len returns the number of entries.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.props)
}

// Has reports whether id is present.
func (p *Properties) Has(id PropertyID) bool {
	if p == nil {
		return false
	}
	for i := range p.props {
		if p.props[i].id == id {
			return true
		}
	}
	return false
}

// Get returns the first value for id, or nil.
func (p *Properties) Get(id PropertyID) any {
	if p == nil {
		return nil
	}
	for i := range p.props {
		if p.props[i].id == id {
			return p.props[i].value
		}
	}
	return nil
}

// Set replaces the value for id, appending it when absent.
func (p *Properties) Set(id PropertyID, value any) {
	for i := range p.props {
		if p.props[i].id == id {
			p.props[i].value = value
			return
		}
	}
	p.props = append(p.props, property{id: id, value: value})
}

// Add appends a value, for repeatable properties.
func (p *Properties) Add(id PropertyID, value any) {
	p.props = append(p.props, property{id: id, value: value})
}

// Delete removes every entry for id.
func (p *Properties) Delete(id PropertyID) {
	if p == nil {
		return
	}
	n := 0
	for i := range p.props {
		if p.props[i].id != id {
			p.props[n] = p.props[i]
			n++
		}
	}
	p.props = p.props[:n]
}

func (p *Properties) clone() Properties {
	if p == nil || len(p.props) == 0 {
		return Properties{}
	}
	out := Properties{props: make([]property, len(p.props))}
	copy(out.props, p.props)
	return out
}

// GetByte returns a byte property or 0.
func (p *Properties) GetByte(id PropertyID) byte {
	v, _ := p.Get(id).(byte)
	return v
}

// GetUint16 returns a two byte integer property or 0.
func (p *Properties) GetUint16(id PropertyID) uint16 {
	v, _ := p.Get(id).(uint16)
	return v
}

// GetUint32 returns a four byte or variable byte integer property or 0.
func (p *Properties) GetUint32(id PropertyID) uint32 {
	v, _ := p.Get(id).(uint32)
	return v
}

// GetString returns a string property or "".
func (p *Properties) GetString(id PropertyID) string {
	v, _ := p.Get(id).(string)
	return v
}

// GetBinary returns a binary property or nil.
func (p *Properties) GetBinary(id PropertyID) []byte {
	v, _ := p.Get(id).([]byte)
	return v
}

// UserProperties returns every user property in wire order.
func (p *Properties) UserProperties() []StringPair {
	if p == nil {
		return nil
	}
	var out []StringPair
	for i := range p.props {
		if sp, ok := p.props[i].value.(StringPair); ok && p.props[i].id == PropUserProperty {
			out = append(out, sp)
		}
	}
	return out
}

// VarInts returns every variable byte integer value for id.
func (p *Properties) VarInts(id PropertyID) []uint32 {
	if p == nil {
		return nil
	}
	var out []uint32
	for i := range p.props {
		if v, ok := p.props[i].value.(uint32); ok && p.props[i].id == id {
			out = append(out, v)
		}
	}
	return out
}

// The setIf helpers add a property only when the optional value is present
// (non-zero), so absent fields cost nothing on the wire.

func (p *Properties) setIfByte(id PropertyID, v byte) {
	if v != 0 {
		p.Set(id, v)
	}
}

func (p *Properties) setIfBool(id PropertyID, v *bool) {
	if v == nil {
		return
	}
	var b byte
	if *v {
		b = 1
	}
	p.Set(id, b)
}

func (p *Properties) setIfUint16(id PropertyID, v uint16) {
	if v != 0 {
		p.Set(id, v)
	}
}

func (p *Properties) setIfUint32(id PropertyID, v uint32) {
	if v != 0 {
		p.Set(id, v)
	}
}

func (p *Properties) setIfString(id PropertyID, v string) {
	if v != "" {
		p.Set(id, v)
	}
}

func (p *Properties) setIfBinary(id PropertyID, v []byte) {
	if len(v) > 0 {
		p.Set(id, v)
	}
}

func (p *Properties) addUserProperties(pairs []StringPair) {
	for _, sp := range pairs {
		p.Add(PropUserProperty, sp)
	}
}

// propertySize returns the encoded size of one entry including its id.
func propertySize(id PropertyID, value any) int {
	size := varintSize(uint32(id))

	switch id.PropertyType() {
	case PropTypeByte:
		size++
	case PropTypeTwoByteInt:
		size += 2
	case PropTypeFourByteInt:
		size += 4
	case PropTypeVarInt:
		v, _ := value.(uint32)
		size += varintSize(v)
	case PropTypeString:
		s, _ := value.(string)
		size += 2 + len(s)
	case PropTypeBinary:
		b, _ := value.([]byte)
		size += 2 + len(b)
	case PropTypeStringPair:
		sp, _ := value.(StringPair)
		size += 4 + len(sp.Key) + len(sp.Value)
	}

	return size
}

// size returns the encoded size of the entries, without the length prefix.
func (p *Properties) size() int {
	if p == nil {
		return 0
	}
	size := 0
	for i := range p.props {
		size += propertySize(p.props[i].id, p.props[i].value)
	}
	return size
}

// encodedSize returns the size including the variable byte length prefix.
func (p *Properties) encodedSize() int {
	size := p.size()
	return varintSize(uint32(size)) + size
}

// Encode writes the length prefix followed by every entry.
func (p *Properties) Encode(w io.Writer) (int, error) {
	n, err := encodeVarint(w, uint32(p.size()))
	if err != nil || p == nil {
		return n, err
	}

	for i := range p.props {
		n2, err := encodeProperty(w, &p.props[i])
		n += n2
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

func encodeProperty(w io.Writer, prop *property) (int, error) {
	n, err := encodeVarint(w, uint32(prop.id))
	if err != nil {
		return n, err
	}

	var n2 int
	switch prop.id.PropertyType() {
	case PropTypeByte:
		v, _ := prop.value.(byte)
		n2, err = encodeByte(w, v)
	case PropTypeTwoByteInt:
		v, _ := prop.value.(uint16)
		n2, err = encodeUint16(w, v)
	case PropTypeFourByteInt:
		v, _ := prop.value.(uint32)
		n2, err = encodeUint32(w, v)
	case PropTypeVarInt:
		v, _ := prop.value.(uint32)
		n2, err = encodeVarint(w, v)
	case PropTypeString:
		v, _ := prop.value.(string)
		n2, err = encodeString(w, v)
	case PropTypeBinary:
		v, _ := prop.value.([]byte)
		n2, err = encodeBinary(w, v)
	case PropTypeStringPair:
		v, _ := prop.value.(StringPair)
		n2, err = encodeStringPair(w, v)
	}

	return n + n2, err
}

// propertyReader returns a reader over the next length bytes of r. Packet
// bodies are sliced in place; other readers are copied.
func propertyReader(r io.Reader, length int) (*bytesReader, int, error) {
	if src, ok := r.(*bytesReader); ok {
		br, err := src.limit(length)
		if err != nil {
			return nil, 0, err
		}
		return br, length, nil
	}

	body := make([]byte, length)
	n, err := io.ReadFull(r, body)
	if err != nil {
		return nil, n, underflow(err)
	}
	return newBytesReader(body), n, nil
}

// Decode reads a length-prefixed property list. Entries are checked against
// the set allowed for ctx, and single-occurrence properties may appear once.
func (p *Properties) Decode(r io.Reader, ctx PropertyContext) (int, error) {
	length, n, err := decodeVarint(r)
	if err != nil {
		return n, err
	}
	if length == 0 {
		return n, nil
	}

	br, n2, err := propertyReader(r, int(length))
	n += n2
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrPropertyLength, err)
	}

	allowed := allowedProperties[ctx]
	seen := make(map[PropertyID]struct{}, 4)

	for br.Remaining() > 0 {
		rawID, _, err := decodeVarint(br)
		if err != nil {
			return n, err
		}

		id := PropertyID(rawID)
		info, ok := propertyTable[id]
		if !ok || rawID > 0xFF {
			return n, fmt.Errorf("%w: 0x%02X in %s", ErrUnknownPropertyID, rawID, ctx)
		}
		if _, ok := allowed[id]; !ok {
			return n, fmt.Errorf("%w: %s in %s", ErrPropertyNotAllowed, id, ctx)
		}
		if _, dup := seen[id]; dup && !info.repeated {
			return n, fmt.Errorf("%w: %s", ErrDuplicateProperty, id)
		}
		seen[id] = struct{}{}

		value, err := decodePropertyValue(br, info.typ)
		if err != nil {
			return n, fmt.Errorf("%s: %w", id, err)
		}

		p.props = append(p.props, property{id: id, value: value})
	}

	return n, nil
}

func decodePropertyValue(r io.Reader, typ PropertyType) (any, error) {
	switch typ {
	case PropTypeByte:
		v, _, err := decodeByte(r)
		return v, err
	case PropTypeTwoByteInt:
		v, _, err := decodeUint16(r)
		return v, err
	case PropTypeFourByteInt:
		v, _, err := decodeUint32(r)
		return v, err
	case PropTypeVarInt:
		v, _, err := decodeVarint(r)
		return v, err
	case PropTypeString:
		v, _, err := decodeString(r)
		return v, err
	case PropTypeBinary:
		v, _, err := decodeBinary(r)
		return v, err
	case PropTypeStringPair:
		v, _, err := decodeStringPair(r)
		return v, err
	default:
		return nil, ErrUnknownPropertyID
	}
}
