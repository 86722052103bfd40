package mqttws

import (
	"io"
	"sync"
)

var (
	bytesReaderPool = sync.Pool{
		New: func() any {
			return &bytesReader{}
		},
	}

	bytesBufferPool = sync.Pool{
		New: func() any {
			return &bytesBuffer{}
		},
	}
)

// maxPooledBuffer caps the capacity of buffers returned to the pool.
const maxPooledBuffer = 64 * 1024

// bytesReader is an io.Reader over a byte slice.
type bytesReader struct {
	data []byte
	pos  int
}

func newBytesReader(data []byte) *bytesReader {
	return &bytesReader{data: data}
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Remaining returns the number of unread bytes.
func (r *bytesReader) Remaining() int {
	return len(r.data) - r.pos
}

// limit returns a reader over exactly the next n bytes and advances r past them.
func (r *bytesReader) limit(n int) (*bytesReader, error) {
	if n < 0 || n > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	sub := newBytesReader(r.data[r.pos : r.pos+n])
	r.pos += n
	return sub, nil
}

// rest returns a copy of every unread byte and consumes them.
func (r *bytesReader) rest() []byte {
	if r.Remaining() == 0 {
		return nil
	}
	out := make([]byte, r.Remaining())
	copy(out, r.data[r.pos:])
	r.pos = len(r.data)
	return out
}

// bytesBuffer is an append-only io.Writer.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}

func (b *bytesBuffer) Len() int {
	return len(b.data)
}

func getBytesReader(data []byte) *bytesReader {
	r := bytesReaderPool.Get().(*bytesReader)
	r.data = data
	r.pos = 0
	return r
}

func putBytesReader(r *bytesReader) {
	if r == nil {
		return
	}
	r.data = nil
	r.pos = 0
	bytesReaderPool.Put(r)
}

func getBytesBuffer() *bytesBuffer {
	b := bytesBufferPool.Get().(*bytesBuffer)
	b.data = b.data[:0]
	return b
}

func putBytesBuffer(b *bytesBuffer) {
	if b == nil {
		return
	}
	if cap(b.data) <= maxPooledBuffer {
		b.data = b.data[:0]
		bytesBufferPool.Put(b)
	}
}
