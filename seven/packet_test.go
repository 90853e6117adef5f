package seven

import (
	"testing"
	"time"

	"github.com/daedaluz/cahute/cherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory reader/writer satisfying this package's local
// reader/writer interfaces: reads are served one at a time from a
// scripted byte queue, writes accumulate in a log for inspection.
type fakeConn struct {
	queue   [][]byte
	written [][]byte
}

func (f *fakeConn) Read(dst []byte, firstTimeout, nextTimeout time.Duration) error {
	if len(f.queue) == 0 {
		return cherr.New(cherr.KindTimeout, "no more scripted bytes", nil)
	}
	next := f.queue[0]
	if len(next) != len(dst) {
		return cherr.New(cherr.KindInvalid, "fakeConn read size mismatch", nil)
	}
	copy(dst, next)
	f.queue = f.queue[1:]
	return nil
}

func (f *fakeConn) Write(buf []byte) error {
	f.written = append(f.written, append([]byte{}, buf...))
	return nil
}

// byteFeeder serves reads from one continuous byte slice, so the fake
// doesn't need to know packet structure up front: each Read hands back
// exactly as many bytes as it asks for, and fails once data runs out.
type byteFeeder struct {
	data []byte
	pos  int
}

func (f *byteFeeder) Read(dst []byte, firstTimeout, nextTimeout time.Duration) error {
	if f.pos+len(dst) > len(f.data) {
		return cherr.New(cherr.KindTimeout, "byteFeeder exhausted", nil)
	}
	copy(dst, f.data[f.pos:f.pos+len(dst)])
	f.pos += len(dst)
	return nil
}

func (f *byteFeeder) Write(buf []byte) error { return nil }

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0), checksum([]byte{0x01, 0xFF}))
}

func TestEscapeByteValue(t *testing.T) {
	assert.Equal(t, []byte{'A'}, escapeByteValue('A'))
	assert.Equal(t, []byte{escapeByte, escapeByte}, escapeByteValue(escapeByte))
	assert.Equal(t, []byte{escapeByte, 0x20}, escapeByteValue(0x00))
	assert.Equal(t, []byte{escapeByte, 0x2E}, escapeByteValue(0x0E))
}

func TestEscapeRoundTrip(t *testing.T) {
	src := []byte{0x00, 0x01, 'A', escapeByte, 0x1F, 'Z'}
	wire := escape(src)

	p := Packet{Type: TypeData, Subtype: 1, Data: src}
	raw, err := Encode(p)
	require.NoError(t, err)

	feeder := &byteFeeder{data: raw}
	got, err := Decode(feeder, 0)
	require.NoError(t, err)
	assert.Equal(t, src, got.Data)
	_ = wire
}

func TestEncodeBasicPacket(t *testing.T) {
	raw, err := Encode(Packet{Type: TypeACK, Subtype: 0})
	require.NoError(t, err)
	assert.Len(t, raw, 6)
	assert.Equal(t, byte(TypeACK), raw[0])
}

func TestEncodeExtendedPacket_OutOfBoundsRejected(t *testing.T) {
	_, err := Encode(Packet{Type: TypeData, Data: []byte{}})
	require.Error(t, err)

	big := make([]byte, MaxDataSize+1)
	_, err = Encode(Packet{Type: TypeData, Data: big})
	require.Error(t, err)
}

func TestDecode_RejectsUnknownType(t *testing.T) {
	feeder := &byteFeeder{data: []byte{0xFF}}
	_, err := Decode(feeder, 0)
	require.Error(t, err)
	var ce *cherr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cherr.KindCorrupt, ce.Kind)
}

func TestDecode_BadChecksumRejected(t *testing.T) {
	raw, err := Encode(Packet{Type: TypeACK, Subtype: 1})
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	feeder := &byteFeeder{data: raw}
	_, err = Decode(feeder, 0)
	require.Error(t, err)
}
