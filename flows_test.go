package cahute

import (
	"bytes"
	"testing"
	"time"

	"github.com/daedaluz/cahute/casiolink"
	"github.com/daedaluz/cahute/cherr"
	"github.com/daedaluz/cahute/seven"
	"github.com/daedaluz/cahute/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errTimeout() error {
	return cherr.New(cherr.KindTimeout, "script exhausted", nil)
}

// scriptedMedium is a stream.Medium backed by one continuous scripted
// byte stream, standing in for a real Seven-protocol peer: the link's
// outgoing bytes are appended to written, and incoming bytes are served
// byte-range-at-a-time from in, exactly the shape seven.Decode needs
// since it issues several differently-sized reads per packet.
type scriptedMedium struct {
	in      []byte
	pos     int
	written [][]byte
}

func (m *scriptedMedium) Read(dst []byte, _, _ time.Duration) (int, error) {
	if m.pos >= len(m.in) {
		return 0, errTimeout()
	}
	n := copy(dst, m.in[m.pos:])
	m.pos += n
	return n, nil
}

func (m *scriptedMedium) Write(buf []byte) error {
	m.written = append(m.written, append([]byte{}, buf...))
	return nil
}

func newSevenLink(script []byte) (*Link, *scriptedMedium) {
	m := &scriptedMedium{in: script}
	l := &Link{
		stream: stream.New(m, 64*1024, nil),
		state:  &sevenState{},
	}
	return l, m
}

func mustEncode(t *testing.T, p seven.Packet) []byte {
	t.Helper()
	raw, err := seven.Encode(p)
	require.NoError(t, err)
	return raw
}

func basicACK(t *testing.T) []byte {
	return mustEncode(t, seven.Packet{Type: seven.TypeACK})
}

// staticReader adapts a single complete byte slice to seven's decode
// read shape, for re-parsing a frame the link under test just wrote.
type staticReader struct {
	data []byte
	pos  int
}

func (r *staticReader) Read(dst []byte, _, _ time.Duration) error {
	if r.pos+len(dst) > len(r.data) {
		return errTimeout()
	}
	n := copy(dst, r.data[r.pos:r.pos+len(dst)])
	r.pos += n
	return nil
}

func (r *staticReader) Write(buf []byte) error { return nil }

func TestDeleteFile_SendsCommandAndAwaitsACK(t *testing.T) {
	l, m := newSevenLink(basicACK(t))
	require.NoError(t, l.DeleteFile("PROGRAM"))
	require.Len(t, m.written, 1)

	p, err := seven.Decode(&staticReader{data: m.written[0]}, seven.ByteTimeout)
	require.NoError(t, err)
	assert.Equal(t, byte(seven.TypeCommand), p.Type)
	assert.Equal(t, seven.SubtypeDeleteFile, p.Subtype)
}

func TestOptimizeFilesystem_AwaitsACK(t *testing.T) {
	l, _ := newSevenLink(basicACK(t))
	require.NoError(t, l.OptimizeFilesystem())
}

func TestOptimizeFilesystem_RejectsNAK(t *testing.T) {
	nak := mustEncode(t, seven.Packet{Type: seven.TypeNAK})
	l, _ := newSevenLink(nak)
	err := l.OptimizeFilesystem()
	assert.Error(t, err)
}

func TestStorageCapacity_ParsesReply(t *testing.T) {
	header := seven.CommandHeader{Size: 1000, DataType: 2}
	reply := mustEncode(t, seven.Packet{Type: seven.TypeACK, Data: header.Encode()})
	l, _ := newSevenLink(reply)
	total, free, err := l.StorageCapacity()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), total)
	assert.Equal(t, uint64(2)<<24, free)
}

func TestDeleteFile_RequiresSevenLink(t *testing.T) {
	l := &Link{state: &casiolinkState{}}
	err := l.DeleteFile("X")
	assert.Error(t, err)
}

func TestListFiles_StopsOnTerm(t *testing.T) {
	term := mustEncode(t, seven.Packet{Type: seven.TypeTerm})
	l, _ := newSevenLink(term)
	var entries []ListEntry
	err := l.ListFiles(func(e ListEntry) bool {
		entries = append(entries, e)
		return false
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFiles_ReportsOneEntryThenInterrupts(t *testing.T) {
	header := seven.CommandHeader{ParamLens: [6]byte{4}}
	data := append(header.Encode(), []byte("FILE")...)
	entryPkt := mustEncode(t, seven.Packet{Type: seven.TypeCommand, Data: data})
	l, _ := newSevenLink(entryPkt)
	var seen []string
	err := l.ListFiles(func(e ListEntry) bool {
		seen = append(seen, e.Name)
		return true
	})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, []string{"FILE"}, seen)
}

func TestRequestFile_ReceivesSingleChunk(t *testing.T) {
	payload := []byte("hello world")
	header := seven.CommandHeader{Size: uint32(len(payload))}
	cmdReply := mustEncode(t, seven.Packet{Type: seven.TypeCommand, Subtype: seven.SubtypeRequestFile, Data: header.Encode()})
	dataFrame := encodeDataPacketForTest(1, 1, payload)
	dataPkt := mustEncode(t, seven.Packet{Type: seven.TypeData, Data: dataFrame})
	l, _ := newSevenLink(append(append([]byte{}, cmdReply...), dataPkt...))

	var out bytes.Buffer
	var lastCur, lastTotal int64
	err := l.RequestFile("FILE", &out, func(cur, total int64) bool {
		lastCur, lastTotal = cur, total
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.String())
	assert.Equal(t, lastTotal, lastCur)
}

func encodeDataPacketForTest(total, index int, chunk []byte) []byte {
	return append([]byte(sprintf04(total)+sprintf04(index)), chunk...)
}

func sprintf04(n int) string {
	const hex = "0123456789ABCDEF"
	b := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		b[i] = hex[n&0xF]
		n >>= 4
	}
	return string(b)
}

func TestReceiveScreen_RequiresOHPLink(t *testing.T) {
	l := &Link{state: &sevenState{}}
	err := l.ReceiveScreen(nil)
	assert.Error(t, err)
}

func newCASIOLINKLink(variant casiolink.Variant, script []byte) (*Link, *scriptedMedium) {
	m := &scriptedMedium{in: script}
	l := &Link{
		stream: stream.New(m, 64*1024, nil),
		state:  &casiolinkState{variant: variant},
	}
	return l, m
}

// buildCAS50Header builds a well-formed CAS50 "MEM" header whose generic
// size field (buf[7:11], big-endian, PayloadSizes' size-2 convention)
// declares a single part of len(payload) bytes.
func buildCAS50Header(payload []byte) *casiolink.Header {
	buf := make([]byte, 50)
	buf[0] = casiolink.TypeHeader
	copy(buf[1:4], "MEM")
	size := uint32(len(payload) + 2)
	buf[7] = byte(size >> 24)
	buf[8] = byte(size >> 16)
	buf[9] = byte(size >> 8)
	buf[10] = byte(size)
	buf[len(buf)-1] = casiolink.Checksum(buf[:len(buf)-1])
	return &casiolink.Header{Variant: casiolink.VariantCAS50, Raw: buf}
}

func TestSendDataItem_CAS50WritesHeaderThenPart(t *testing.T) {
	payload := []byte("hello cas50 world")
	header := buildCAS50Header(payload)
	l, m := newCASIOLINKLink(casiolink.VariantCAS50, nil)

	err := l.SendDataItem(DataItem{Header: header, Payload: payload})
	require.NoError(t, err)
	require.Len(t, m.written, 2)
	assert.Equal(t, header.Raw, m.written[0])
	assert.Equal(t, payload, m.written[1][1:1+len(payload)])
}

func TestReceiveDataItem_CAS50ReadsHeaderThenPart(t *testing.T) {
	payload := []byte("hello cas50 world")
	header := buildCAS50Header(payload)
	dataFrame := append(append([]byte{casiolink.TypeData}, payload...), casiolink.Checksum(payload))
	script := append(append([]byte{}, header.Raw...), dataFrame...)
	l, _ := newCASIOLINKLink(casiolink.VariantCAS50, script)

	item, err := l.ReceiveDataItem()
	require.NoError(t, err)
	assert.Equal(t, payload, item.Payload)
	assert.Equal(t, casiolink.VariantCAS50, item.Header.Variant)
}

func TestReceiveDataItem_StopsOnEndHeader(t *testing.T) {
	endHeader := make([]byte, 50)
	endHeader[0] = casiolink.TypeHeader
	copy(endHeader[1:4], "END")
	endHeader[4] = 0xFF
	endHeader[len(endHeader)-1] = casiolink.Checksum(endHeader[:len(endHeader)-1])
	l, _ := newCASIOLINKLink(casiolink.VariantCAS50, endHeader)

	_, err := l.ReceiveDataItem()
	assert.ErrorIs(t, err, ErrTerminated)
}

func buildCAS100Header(opcode string) *casiolink.Header {
	buf := make([]byte, 40)
	buf[0] = casiolink.TypeHeader
	copy(buf[1:5], opcode)
	buf[len(buf)-1] = casiolink.Checksum(buf[:len(buf)-1])
	return &casiolink.Header{Variant: casiolink.VariantCAS100, Raw: buf}
}

func TestSendDataItem_CAS100SendsChunkedDataThenTerminates(t *testing.T) {
	header := buildCAS100Header("ADN1")
	payload := []byte("small CAS100 payload")
	// One ACK for the single (padded) data chunk, one for the trailing
	// Terminate(VariantCAS100) call SendCAS100Data issues itself.
	script := append(append([]byte{}, casiolink.TypeACK), casiolink.TypeACK)
	l, m := newCASIOLINKLink(casiolink.VariantCAS100, script)

	err := l.SendDataItem(DataItem{Header: header, Payload: payload})
	require.NoError(t, err)
	require.Len(t, m.written, 3)
	assert.Equal(t, header.Raw, m.written[0])
	assert.Equal(t, byte(casiolink.TypeData), m.written[1][0])
	assert.Equal(t, byte(casiolink.TypeHeader), m.written[2][0])
	assert.Equal(t, "END1", string(m.written[2][1:5]))
}

func TestReceiveDataItem_CAS100ReadsChunkedData(t *testing.T) {
	header := buildCAS100Header("REQ1")
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	dataFrame := append(append([]byte{}, payload...), casiolink.Checksum(payload))

	endHeader := make([]byte, 40)
	endHeader[0] = casiolink.TypeHeader
	copy(endHeader[1:5], "END1")
	endHeader[len(endHeader)-1] = casiolink.Checksum(endHeader[:len(endHeader)-1])

	script := append(append([]byte{}, header.Raw...), casiolink.TypeData)
	script = append(script, dataFrame...)
	script = append(script, casiolink.TypeHeader)
	script = append(script, endHeader[1:]...)
	l, m := newCASIOLINKLink(casiolink.VariantCAS100, script)

	item, err := l.ReceiveDataItem()
	require.NoError(t, err)
	assert.Equal(t, payload, item.Payload)
	require.Len(t, m.written, 1)
	assert.Equal(t, []byte{casiolink.TypeACK}, m.written[0])
}

func TestReceiveDataItem_RequiresCASIOLINKLink(t *testing.T) {
	l := &Link{state: &sevenState{}}
	_, err := l.ReceiveDataItem()
	assert.Error(t, err)
}

func TestSendDataItem_RequiresCASIOLINKLink(t *testing.T) {
	l := &Link{state: &sevenState{}}
	err := l.SendDataItem(DataItem{Header: &casiolink.Header{}})
	assert.Error(t, err)
}
