package cahute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// field left-justifies s into a width-byte space-padded slice, truncating
// s if it overruns width.
func field(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}

func putField(blob []byte, offset int, s string, width int) {
	copy(blob[offset:offset+width], field(s, width))
}

func buildDeviceInfoBlob(withOrg bool) []byte {
	size := 164
	if withOrg {
		size = 188
	}
	blob := make([]byte, size)
	for i := range blob {
		blob[i] = ' '
	}
	putField(blob, 0, "HW0001", 8)
	putField(blob, 8, "CPU0001", 16)
	putField(blob, 24, "16384", 8)
	putField(blob, 32, "32768", 8)
	putField(blob, 40, "8192", 8)
	putField(blob, 48, "01.00.0000", 16)
	putField(blob, 64, "01.00.0000", 16)
	putField(blob, 80, "08030000", 8)
	putField(blob, 88, "256", 8)
	putField(blob, 96, "03.40.0000", 16)
	putField(blob, 112, "00300000", 8)
	putField(blob, 120, "4096", 8)
	putField(blob, 132, "fx-9860GII", 16)
	if withOrg {
		putField(blob, 148, "Alice", 20)
		putField(blob, 168, "Acme", 20)
	} else {
		putField(blob, 148, "Alice", 16)
	}
	return blob
}

func TestParseDeviceInfo_ShortForm(t *testing.T) {
	blob := buildDeviceInfoBlob(false)
	info, err := ParseDeviceInfo(blob)
	require.NoError(t, err)
	assert.Equal(t, "HW0001", info.HardwareID)
	assert.Equal(t, 16384, info.PreprogrammedKB)
	assert.Equal(t, "fx-9860GII", info.ProductID)
	assert.Equal(t, "Alice", info.Username)
	assert.Empty(t, info.Organisation)
}

func TestParseDeviceInfo_LongFormCarriesOrganisation(t *testing.T) {
	blob := buildDeviceInfoBlob(true)
	info, err := ParseDeviceInfo(blob)
	require.NoError(t, err)
	assert.Equal(t, "Alice", info.Username)
	assert.Equal(t, "Acme", info.Organisation)
}

func TestParseDeviceInfo_TooShortRejected(t *testing.T) {
	_, err := ParseDeviceInfo(make([]byte, 100))
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindTruncated, ce.Kind)
}

func TestHexField(t *testing.T) {
	assert.Equal(t, uint32(0x08030000), hexField([]byte("08030000")))
}

func TestDecimalField(t *testing.T) {
	assert.Equal(t, 256, decimalField([]byte("256     ")))
}

func TestTrimField(t *testing.T) {
	assert.Equal(t, "Alice", trimField([]byte("Alice           ")))
}
