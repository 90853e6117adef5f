package seven

import (
	"testing"
	"time"

	"github.com/daedaluz/cahute/cherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDataPacket(t *testing.T) {
	chunk := []byte{1, 2, 3}
	wire := encodeDataPacket(7, 3, chunk)
	total, index, got, err := decodeDataPacket(wire)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, 3, index)
	assert.Equal(t, chunk, got)
}

func TestDecodeDataPacket_TooShort(t *testing.T) {
	_, _, _, err := decodeDataPacket([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSplitChunks(t *testing.T) {
	data := make([]byte, ChunkSize*2+5)
	chunks := splitChunks(data)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], ChunkSize)
	assert.Len(t, chunks[1], ChunkSize)
	assert.Len(t, chunks[2], 5)
}

func TestSplitChunks_Empty(t *testing.T) {
	assert.Empty(t, splitChunks(nil))
}

// streamConn serves reads from one continuous byte stream, so a test can
// script multi-packet responses (each internally read in several
// differently-sized chunks by Decode) without fakeConn's one-queue-
// entry-per-call restriction.
type streamConn struct {
	in      []byte
	pos     int
	written [][]byte
}

func (s *streamConn) Read(dst []byte, firstTimeout, nextTimeout time.Duration) error {
	if s.pos+len(dst) > len(s.in) {
		return cherr.New(cherr.KindTimeout, "streamConn exhausted", nil)
	}
	copy(dst, s.in[s.pos:s.pos+len(dst)])
	s.pos += len(dst)
	return nil
}

func (s *streamConn) Write(buf []byte) error {
	s.written = append(s.written, append([]byte{}, buf...))
	return nil
}

// TestSendDataStream_NotShifted sends two chunks stop-and-wait, each
// acknowledged before the next is sent.
func TestSendDataStream_NotShifted(t *testing.T) {
	data := make([]byte, ChunkSize+1)
	ack, err := Encode(Packet{Type: TypeACK})
	require.NoError(t, err)
	c := &streamConn{in: append(append([]byte{}, ack...), ack...)}
	err = SendDataStream(c, data, false)
	require.NoError(t, err)
	require.Len(t, c.written, 2)
}

// TestSendDataStream_RetransmitsOnResend verifies a NAK/RESEND triggers
// the same frame being sent again rather than advancing.
func TestSendDataStream_RetransmitsOnResend(t *testing.T) {
	data := make([]byte, 4)
	nak, err := Encode(Packet{Type: TypeNAK, Subtype: SubtypeResend})
	require.NoError(t, err)
	ack, err := Encode(Packet{Type: TypeACK})
	require.NoError(t, err)
	c := &streamConn{in: append(append([]byte{}, nak...), ack...)}

	err = SendDataStream(c, data, false)
	require.NoError(t, err)
	require.Len(t, c.written, 2)
	assert.Equal(t, c.written[0], c.written[1])
}

func TestReceiveDataStream_SinglePacket(t *testing.T) {
	chunk := []byte("hello")
	payload := encodeDataPacket(1, 1, chunk)
	raw, err := Encode(Packet{Type: TypeData, Data: payload})
	require.NoError(t, err)

	feeder := &byteFeeder{data: raw}
	got, err := ReceiveDataStream(feeder)
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestReceiveDataStream_OutOfSequenceRejected(t *testing.T) {
	chunk := []byte("x")
	payload := encodeDataPacket(2, 2, chunk) // should have been index 1 first
	raw, err := Encode(Packet{Type: TypeData, Data: payload})
	require.NoError(t, err)
	feeder := &byteFeeder{data: raw}
	_, err = ReceiveDataStream(feeder)
	require.Error(t, err)
}
