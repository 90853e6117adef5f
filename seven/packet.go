// Package seven implements the ASCII-hex framed "Seven" protocol
// (Protocol 7.00) used by newer CASIO calculators: packet framing,
// escaping, handshake, role-swap, data-phase streaming with optional
// packet shifting, and overwrite arbitration.
package seven

import (
	"time"

	"github.com/daedaluz/cahute/cherr"
)

// Packet types, spec §4.4.
const (
	TypeCommand  = 0x01
	TypeData     = 0x02
	TypeRoleSwap = 0x03
	TypeCheck    = 0x05
	TypeACK      = 0x06
	TypeNAK      = 0x15
	TypeTerm     = 0x18
)

// Timeouts, spec §4.4.
const (
	FirstByteTimeout = 0
	ByteTimeout      = 2 * time.Second
)

// escapeByte is substituted for any payload byte that would collide
// with a framing byte, per spec §4.4.
const escapeByte = 0x5C

// DataSize bounds for an extended packet's data field, §4.4.
const (
	MinDataSize = 1
	MaxDataSize = 528
)

// escapeByteValue renders one logical data byte as its wire form: bytes below
// 0x20 are transmitted as 0x5C followed by the byte plus 0x20 (so the
// result stays printable and above every framing byte's range), and a
// literal 0x5C is doubled.
func escapeByteValue(b byte) []byte {
	switch {
	case b == escapeByte:
		return []byte{escapeByte, escapeByte}
	case b < 0x20:
		return []byte{escapeByte, b + 0x20}
	default:
		return []byte{b}
	}
}

// escape applies escapeByteValue across an entire logical payload.
func escape(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for _, b := range src {
		out = append(out, escapeByteValue(b)...)
	}
	return out
}

// checksum is the two's-complement checksum over the covered bytes of
// a Seven packet (everything between the type byte and the checksum
// byte inclusive of the subtype and length fields, per spec §4.4).
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}
