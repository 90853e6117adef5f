// Package casiolink implements the byte-oriented legacy CASIOLINK family
// of framed packet codecs (CAS40, CAS50, CAS100): header parsing and
// emission, payload sizing, data-part framing, and the handshake.
package casiolink

import "time"

// Packet type leading codes, spec §4.3.
const (
	TypeACK         = 0x06
	TypeEstablished = 0x13
	TypeStart       = 0x16
	TypeInvalidData = 0x24
	TypeCorrupted   = 0x2B
	TypeHeader      = 0x3A
	TypeData        = 0x3E
)

// Timeouts, spec §4.3: zero for the first byte of a header (wait
// indefinitely unless the caller imposes an outer timeout), 1s for
// subsequent header bytes and for data bytes.
const (
	HeaderFirstByteTimeout = 0
	HeaderByteTimeout      = time.Second
	DataByteTimeout        = time.Second
)

// Checksum is the one-byte two's-complement checksum used for both
// headers and data parts: the negation of the sum of the covered bytes.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}
