package flash

import (
	"testing"
	"time"

	"github.com/daedaluz/cahute/cherr"
	"github.com/daedaluz/cahute/seven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackLink answers every Decode with a basic ACK packet, regenerating its
// backing buffer on demand so an unbounded number of exchanges can be
// served without the test precomputing how many there will be.
type ackLink struct {
	buf     []byte
	written [][]byte
}

func (a *ackLink) Read(dst []byte, firstTimeout, nextTimeout time.Duration) error {
	for len(a.buf) < len(dst) {
		ack, err := seven.Encode(seven.Packet{Type: seven.TypeACK})
		if err != nil {
			return err
		}
		a.buf = append(a.buf, ack...)
	}
	copy(dst, a.buf[:len(dst)])
	a.buf = a.buf[len(dst):]
	return nil
}

func (a *ackLink) Write(buf []byte) error {
	a.written = append(a.written, append([]byte{}, buf...))
	return nil
}

func TestSectorPlan_AppendsInitialSectorLast(t *testing.T) {
	imageSize := bootloaderSize + sectorSize*3
	sectors := sectorPlan(imageSize, false)
	require.NotEmpty(t, sectors)
	assert.Equal(t, uint32(initialSector), sectors[len(sectors)-1])
	for _, addr := range sectors[:len(sectors)-1] {
		assert.GreaterOrEqual(t, addr, uint32(firstSystemSect))
	}
}

func TestSectorPlan_ResetSMEMExtendsRange(t *testing.T) {
	imageSize := bootloaderSize + sectorSize*2
	plain := sectorPlan(imageSize, false)
	reset := sectorPlan(imageSize, true)
	assert.Greater(t, len(reset), len(plain))
}

func TestSectorOffset(t *testing.T) {
	assert.Equal(t, 0, sectorOffset(initialSector))
	assert.Equal(t, sectorSize, sectorOffset(firstSystemSect))
	assert.Equal(t, sectorSize*2, sectorOffset(firstSystemSect+sectorSize))
}

func TestWrite_RejectsUndersizedImage(t *testing.T) {
	w := New(&ackLink{})
	err := w.Write(make([]byte, bootloaderSize), false, nil)
	require.Error(t, err)
	var ce *cherr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cherr.KindDataSize, ce.Kind)
}

func TestWrite_DrivesFullSequence(t *testing.T) {
	image := make([]byte, bootloaderSize+sectorSize*2+100)
	link := &ackLink{}
	w := New(link)
	var lastCurrent, lastTotal int64
	err := w.Write(image, false, func(current, total int64) {
		lastCurrent, lastTotal = current, total
	})
	require.NoError(t, err)
	assert.Equal(t, lastTotal, lastCurrent)
	assert.NotEmpty(t, link.written)
}
