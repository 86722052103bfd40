package mqttws

import "errors"

// framer rebuilds packets from transport messages whose boundaries need
// not line up with packet boundaries. Bytes of a trailing partial packet
// are carried over to the next push.
type framer struct {
	buf     []byte
	maxSize uint32
}

// frame is one complete packet as read off the wire.
type frame struct {
	header FixedHeader
	body   []byte
	size   int
}

// push appends data and returns every packet that is now complete.
func (f *framer) push(data []byte) ([]frame, error) {
	f.buf = append(f.buf, data...)

	var frames []frame
	for len(f.buf) > 0 {
		header, n, err := parseFixedHeader(f.buf)
		if errors.Is(err, ErrNeedMoreData) {
			break
		}
		if err != nil {
			return frames, decodeError(header.PacketType, err)
		}

		size := n + int(header.RemainingLength)
		if f.maxSize > 0 && uint32(size) > f.maxSize {
			return frames, decodeError(header.PacketType, ErrPacketTooLarge)
		}
		if len(f.buf) < size {
			break
		}

		body := make([]byte, header.RemainingLength)
		copy(body, f.buf[n:size])
		frames = append(frames, frame{header: header, body: body, size: size})
		f.buf = f.buf[size:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames, nil
}

// reset drops any carried over bytes.
func (f *framer) reset() {
	f.buf = nil
}

// pending returns the number of carried over bytes.
func (f *framer) pending() int {
	return len(f.buf)
}
