package casiolink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDataPart_ExclusiveChecksum(t *testing.T) {
	c := &fakeConn{}
	payload := []byte{1, 2, 3, 4}
	require.NoError(t, SendDataPart(c, payload))
	require.Len(t, c.written, 1)
	frame := c.written[0]
	assert.Equal(t, TypeData, int(frame[0]))
	assert.Equal(t, Checksum(payload), frame[len(frame)-1])
}

// TestReceiveDataPart_AcceptsBothChecksumConventions resolves the open
// question on colour-screenshot data parts: both the type-byte-inclusive
// and type-byte-exclusive checksum conventions are accepted on read.
func TestReceiveDataPart_AcceptsBothChecksumConventions(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}

	exclusive := append([]byte{TypeData}, payload...)
	exclusive = append(exclusive, Checksum(payload))
	c1 := &fakeConn{queue: [][]byte{exclusive}}
	got, err := ReceiveDataPart(c1, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	inclusive := append([]byte{TypeData}, payload...)
	inclusive = append(inclusive, Checksum(inclusive))
	c2 := &fakeConn{queue: [][]byte{inclusive}}
	got2, err := ReceiveDataPart(c2, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got2)
}

func TestReceiveDataPart_BadChecksumRejected(t *testing.T) {
	payload := []byte{0x01, 0x02}
	frame := append([]byte{TypeData}, payload...)
	frame = append(frame, Checksum(payload)^0xFF)
	c := &fakeConn{queue: [][]byte{frame}}
	_, err := ReceiveDataPart(c, len(payload))
	require.Error(t, err)
}

func TestReceivePayload_Sequence(t *testing.T) {
	p1 := []byte{1, 2}
	p2 := []byte{3, 4, 5}
	f1 := append([]byte{TypeData}, p1...)
	f1 = append(f1, Checksum(p1))
	f2 := append([]byte{TypeData}, p2...)
	f2 = append(f2, Checksum(p2))

	c := &fakeConn{queue: [][]byte{f1, f2}}
	spec := PayloadSpec{Sizes: []int{len(p1), len(p2)}}
	parts, err := ReceivePayload(c, spec)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, p1, parts[0])
	assert.Equal(t, p2, parts[1])
}
