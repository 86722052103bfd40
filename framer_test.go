package mqttws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerSplitsAndJoins(t *testing.T) {
	publish, err := EncodePacket(&PublishPacket{Topic: "a/b", Payload: []byte("payload")})
	require.NoError(t, err)
	ping, err := EncodePacket(&PingrespPacket{})
	require.NoError(t, err)

	stream := append(append([]byte{}, publish...), ping...)

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{name: "one message", chunks: [][]byte{stream}},
		{name: "byte by byte", chunks: splitEvery(stream, 1)},
		{name: "split inside header", chunks: [][]byte{stream[:1], stream[1:]}},
		{name: "split inside body", chunks: [][]byte{stream[:6], stream[6:]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f framer
			var frames []frame
			for _, c := range tt.chunks {
				got, err := f.push(c)
				require.NoError(t, err)
				frames = append(frames, got...)
			}

			require.Len(t, frames, 2)
			assert.Equal(t, PacketPUBLISH, frames[0].header.PacketType)
			assert.Equal(t, len(publish), frames[0].size)
			assert.Equal(t, PacketPINGRESP, frames[1].header.PacketType)
			assert.Empty(t, frames[1].body)
			assert.Zero(t, f.pending())

			pkt, err := decodeBody(frames[0].header, frames[0].body)
			require.NoError(t, err)
			assert.Equal(t, "a/b", pkt.(*PublishPacket).Topic)
		})
	}
}

func TestFramerCarriesPartialPacket(t *testing.T) {
	var f framer
	frames, err := f.push([]byte{0x30, 0x05, 0x00})
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 3, f.pending())

	f.reset()
	assert.Zero(t, f.pending())
}

func TestFramerErrors(t *testing.T) {
	t.Run("invalid type", func(t *testing.T) {
		var f framer
		_, err := f.push([]byte{0x00, 0x00})
		assert.ErrorIs(t, err, ErrInvalidPacketType)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})

	t.Run("too large", func(t *testing.T) {
		f := framer{maxSize: 4}
		_, err := f.push([]byte{0x30, 0x10})
		assert.ErrorIs(t, err, ErrPacketTooLarge)
	})

	t.Run("malformed length", func(t *testing.T) {
		var f framer
		_, err := f.push([]byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF})
		assert.ErrorIs(t, err, ErrVarintMalformed)
	})
}

func splitEvery(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n])
		data = data[n:]
	}
	return append(out, data)
}
