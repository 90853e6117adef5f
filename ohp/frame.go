// Package ohp implements the Seven screen-streaming sub-protocol: frame
// packet parsing, format-code dispatch, the CHECK keepalive interleave,
// and resynchronisation after a dropped or corrupted frame.
package ohp

import (
	"fmt"
	"time"

	"github.com/daedaluz/cahute/cherr"
)

// Leading bytes of a frame or check packet, spec §4.5.
const (
	leadFrame = 0x0B
	leadCheck = 0x16
)

// Frame subtypes.
const (
	SubtypeFixed      = "TYP01"
	SubtypeVariable16 = "TYPZ1"
	SubtypeVariable32 = "TYPZ2"
	SubtypeCheck      = "CAL00"
)

// Format codes and the pixel-data size function for each.
const (
	FormatRGB565  = "1RC2"
	FormatRGB4bit = "1RC3"
	FormatMono2   = "1RM2"
)

// FormatSize returns the payload size in bytes for format at the given
// dimensions, or an error if the format code is unrecognised.
func FormatSize(format string, w, h int) (int, error) {
	switch format {
	case FormatRGB565:
		return w * h * 2, nil
	case FormatRGB4bit:
		return (w*h + 1) / 2, nil
	case FormatMono2:
		return 2 * ceilDiv8(w) * h, nil
	default:
		return 0, cherr.New(cherr.KindIncompatible, "unrecognised screen frame format", nil)
	}
}

func ceilDiv8(n int) int {
	return (n + 7) / 8
}

// Frame is one decoded screen-streaming frame.
type Frame struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// reader/writer mirror stream.Buffer's method set, kept local to avoid
// a package cycle through the root package.
type reader interface {
	Read(dst []byte, firstTimeout, nextTimeout time.Duration) error
}

type writer interface {
	Write(buf []byte) error
}

const byteTimeout = time.Second

// checksum is the two-hex-digit (one-byte two's complement) checksum
// covering a frame's header (minus its leading type byte) plus payload.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

func readChecksum(r reader) (byte, error) {
	cc := make([]byte, 2)
	if err := r.Read(cc, byteTimeout, byteTimeout); err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(string(cc), "%02X", &v); err != nil {
		return 0, cherr.New(cherr.KindCorrupt, "malformed frame checksum", nil)
	}
	return byte(v), nil
}
