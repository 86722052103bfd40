package mqttws

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

// Encoding errors.
var (
	ErrStringTooLong      = errors.New("string exceeds maximum length of 65535 bytes")
	ErrBinaryTooLong      = errors.New("binary data exceeds maximum length of 65535 bytes")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	ErrStringContainsNull = errors.New("string contains null character")
	ErrInvalidBool        = errors.New("boolean value must be 0 or 1")
	ErrVarintTooLarge     = errors.New("variable byte integer exceeds maximum value")
	ErrVarintMalformed    = errors.New("malformed variable byte integer")
	ErrNeedMoreData       = errors.New("more data needed")
)

const (
	maxUint16         = 65535
	maxVarint         = 268435455
	maxVarintBytes    = 4
	varintContinueBit = 0x80
	varintValueMask   = 0x7F
)

func encodeByte(w io.Writer, b byte) (int, error) {
	return w.Write([]byte{b})
}

func decodeByte(r io.Reader) (byte, int, error) {
	var buf [1]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, underflow(err)
	}
	return buf[0], n, nil
}

func encodeBool(w io.Writer, v bool) (int, error) {
	if v {
		return encodeByte(w, 1)
	}
	return encodeByte(w, 0)
}

// decodeBool accepts only 0 and 1.
func decodeBool(r io.Reader) (bool, int, error) {
	b, n, err := decodeByte(r)
	if err != nil {
		return false, n, err
	}
	switch b {
	case 0:
		return false, n, nil
	case 1:
		return true, n, nil
	default:
		return false, n, ErrInvalidBool
	}
}

func encodeUint16(w io.Writer, v uint16) (int, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return w.Write(buf[:])
}

func decodeUint16(r io.Reader) (uint16, int, error) {
	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, underflow(err)
	}
	return binary.BigEndian.Uint16(buf[:]), n, nil
}

func encodeUint32(w io.Writer, v uint32) (int, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return w.Write(buf[:])
}

func decodeUint32(r io.Reader) (uint32, int, error) {
	var buf [4]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, underflow(err)
	}
	return binary.BigEndian.Uint32(buf[:]), n, nil
}

// encodeString writes a UTF-8 string with 2-byte length prefix to w.
func encodeString(w io.Writer, s string) (int, error) {
	if err := validateString(s); err != nil {
		return 0, err
	}

	n, err := encodeUint16(w, uint16(len(s)))
	if err != nil {
		return n, err
	}

	n2, err := io.WriteString(w, s)
	return n + n2, err
}

// decodeString reads a UTF-8 string with 2-byte length prefix from r.
func decodeString(r io.Reader) (string, int, error) {
	buf, n, err := decodeBinary(r)
	if err != nil {
		return "", n, err
	}

	s := string(buf)
	if err := validateString(s); err != nil {
		return "", n, err
	}

	return s, n, nil
}

func validateString(s string) error {
	if len(s) > maxUint16 {
		return ErrStringTooLong
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	for i := range len(s) {
		if s[i] == 0 {
			return ErrStringContainsNull
		}
	}
	return nil
}

// encodeBinary writes binary data with 2-byte length prefix to w.
func encodeBinary(w io.Writer, data []byte) (int, error) {
	if len(data) > maxUint16 {
		return 0, ErrBinaryTooLong
	}

	n, err := encodeUint16(w, uint16(len(data)))
	if err != nil {
		return n, err
	}

	n2, err := w.Write(data)
	return n + n2, err
}

// decodeBinary reads binary data with 2-byte length prefix from r.
func decodeBinary(r io.Reader) ([]byte, int, error) {
	length, n, err := decodeUint16(r)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}

	buf := make([]byte, length)
	n2, err := io.ReadFull(r, buf)
	n += n2
	if err != nil {
		return nil, n, underflow(err)
	}

	return buf, n, nil
}

// StringPair is a UTF-8 key/value pair, used by user properties.
type StringPair struct {
	Key   string
	Value string
}

func encodeStringPair(w io.Writer, pair StringPair) (int, error) {
	n, err := encodeString(w, pair.Key)
	if err != nil {
		return n, err
	}

	n2, err := encodeString(w, pair.Value)
	return n + n2, err
}

func decodeStringPair(r io.Reader) (StringPair, int, error) {
	key, n, err := decodeString(r)
	if err != nil {
		return StringPair{}, n, err
	}

	value, n2, err := decodeString(r)
	n += n2
	if err != nil {
		return StringPair{}, n, err
	}

	return StringPair{Key: key, Value: value}, n, nil
}

// encodeVarint writes a variable byte integer to w.
func encodeVarint(w io.Writer, value uint32) (int, error) {
	var buf [maxVarintBytes]byte
	n, err := putVarint(buf[:], value)
	if err != nil {
		return 0, err
	}
	return w.Write(buf[:n])
}

// putVarint encodes value into buf, which must hold at least 4 bytes.
func putVarint(buf []byte, value uint32) (int, error) {
	if value > maxVarint {
		return 0, ErrVarintTooLarge
	}

	n := 0
	for {
		encoded := byte(value & varintValueMask)
		value >>= 7
		if value > 0 {
			encoded |= varintContinueBit
		}
		buf[n] = encoded
		n++
		if value == 0 {
			return n, nil
		}
	}
}

// decodeVarint reads a variable byte integer from r.
func decodeVarint(r io.Reader) (uint32, int, error) {
	var value uint32
	var buf [1]byte

	for i := range maxVarintBytes {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, i, underflow(err)
		}

		value |= uint32(buf[0]&varintValueMask) << (7 * i)
		if buf[0]&varintContinueBit == 0 {
			return value, i + 1, nil
		}
	}

	return 0, maxVarintBytes, ErrVarintMalformed
}

// peekVarint decodes a variable byte integer from the start of buf without
// consuming anything. It returns ErrNeedMoreData when buf ends before the
// integer does, and ErrVarintMalformed when a fifth byte would be required.
func peekVarint(buf []byte) (uint32, int, error) {
	var value uint32

	for i := range maxVarintBytes {
		if i >= len(buf) {
			return 0, 0, ErrNeedMoreData
		}

		value |= uint32(buf[i]&varintValueMask) << (7 * i)
		if buf[i]&varintContinueBit == 0 {
			return value, i + 1, nil
		}
	}

	return 0, 0, ErrVarintMalformed
}

// varintSize returns the number of bytes needed to encode a variable byte integer.
func varintSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	default:
		return 4
	}
}

func underflow(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
