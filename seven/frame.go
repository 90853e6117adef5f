package seven

import (
	"fmt"
	"time"

	"github.com/daedaluz/cahute/cherr"
)

// Packet is one decoded Seven-protocol packet. Data is always the
// logical (unescaped) payload; Encode re-escapes it for the wire and
// Decode strips the wire escaping before returning it here.
type Packet struct {
	Type    byte
	Subtype int
	Data    []byte // nil for a basic packet
}

// Encode renders p as wire bytes: a basic packet (T SS '0' CC) when
// Data is nil, an extended packet (T SS '1' LLLL <data> CC) otherwise.
func Encode(p Packet) ([]byte, error) {
	if p.Data == nil {
		body := []byte(fmt.Sprintf("%02X0", p.Subtype))
		cc := checksum(body)
		out := make([]byte, 0, 6)
		out = append(out, p.Type)
		out = append(out, body...)
		out = append(out, []byte(fmt.Sprintf("%02X", cc))...)
		return out, nil
	}
	if len(p.Data) < MinDataSize || len(p.Data) > MaxDataSize {
		return nil, cherr.New(cherr.KindDataSize, "extended packet data out of bounds", nil)
	}
	wireData := escape(p.Data)
	body := []byte(fmt.Sprintf("%02X1%04X", p.Subtype, len(p.Data)))
	sum := checksum(append(append([]byte{}, body...), wireData...))
	out := make([]byte, 0, len(body)+len(wireData)+3)
	out = append(out, p.Type)
	out = append(out, body...)
	out = append(out, wireData...)
	out = append(out, []byte(fmt.Sprintf("%02X", sum))...)
	return out, nil
}

// reader is the minimal duck-typed transport surface, matching
// stream.Buffer's method set, kept local to avoid a package cycle
// through the root package.
type reader interface {
	Read(dst []byte, firstTimeout, nextTimeout time.Duration) error
}

type writer interface {
	Write(buf []byte) error
}
