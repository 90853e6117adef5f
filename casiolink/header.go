package casiolink

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/daedaluz/cahute/cherr"
)

// headerLen40 is the header size for CAS40 and CAS100; CAS50 headers run
// ten bytes longer.
const (
	headerLen40 = 40
	headerLen50 = 50
)

// Header is a parsed CASIOLINK header packet (the 0x3A-led frame that
// precedes every data part).
type Header struct {
	Variant Variant
	Raw     []byte // the full header including the leading 0x3A and trailing checksum
	IsEnd   bool   // a termination marker (CAS40 "\x17\xFF", CAS50 "END\xFF" or CAS100 "END1")
}

// reader is the minimal duck-typed surface casiolink needs from the
// transport: the same shape as stream.Buffer, kept local so this
// package does not import stream and create a cycle through the root
// package.
type reader interface {
	Read(dst []byte, firstTimeout, nextTimeout time.Duration) error
}

type writer interface {
	Write(buf []byte) error
}

// ReceiveHeader reads one 40-byte header, extends the read to 50 bytes
// if the opcode indicates CAS50, verifies its checksum, and classifies
// its variant. want constrains acceptance to a single dialect; pass
// VariantAuto to accept whichever one the opcode selects.
func ReceiveHeader(r reader, want Variant) (*Header, error) {
	buf := make([]byte, headerLen40)
	if err := r.Read(buf, HeaderFirstByteTimeout, HeaderByteTimeout); err != nil {
		return nil, err
	}
	if buf[0] != TypeHeader {
		return nil, cherr.New(cherr.KindCorrupt, "expected header packet", nil)
	}
	variant := detectVariant(buf)
	if variant == VariantCAS50 {
		rest := make([]byte, headerLen50-headerLen40)
		if err := r.Read(rest, HeaderByteTimeout, HeaderByteTimeout); err != nil {
			return nil, err
		}
		buf = append(buf, rest...)
	}
	if want != VariantAuto && want != variant {
		return nil, cherr.New(cherr.KindInvalid, "unexpected header variant", nil)
	}
	if err := verifyChecksum(buf); err != nil {
		return nil, err
	}
	h := &Header{Variant: variant, Raw: buf}
	switch variant {
	case VariantCAS100:
		h.IsEnd = string(buf[1:5]) == "END1"
	case VariantCAS50:
		h.IsEnd = string(buf[1:4]) == "END" && buf[4] == 0xFF
	case VariantCAS40:
		h.IsEnd = buf[1] == 0x17 && buf[2] == 0xFF
	}
	return h, nil
}

// SendHeader writes h.Raw after (re)computing its trailing checksum
// byte, so callers can build a header with every field but the
// checksum filled in.
func SendHeader(w writer, h *Header) error {
	body := make([]byte, len(h.Raw))
	copy(body, h.Raw)
	body[len(body)-1] = Checksum(body[:len(body)-1])
	return w.Write(body)
}

func verifyChecksum(buf []byte) error {
	want := buf[len(buf)-1]
	got := Checksum(buf[:len(buf)-1])
	if want != got {
		return cherr.New(cherr.KindCorrupt, "header checksum mismatch", nil)
	}
	return nil
}

// PayloadSpec describes the data parts a header calls for: either a
// fixed list of part sizes, or a repeated part of a fixed size emitted
// count times (the CAS50 VAL table uses the repeat form).
type PayloadSpec struct {
	Sizes []int
}

// Repeat builds a PayloadSpec of count parts each of size n.
func Repeat(n, count int) PayloadSpec {
	sizes := make([]int, count)
	for i := range sizes {
		sizes[i] = n
	}
	return PayloadSpec{Sizes: sizes}
}

// PayloadSizes computes the data parts called for by h, per the
// hard-coded per-opcode sizing table of spec §4.3. CAS100 headers other
// than END1 return an empty spec since their data phase is the fixed
// 1024-byte DATA-packet stream handled separately (ReceiveCAS100Data).
func PayloadSizes(h *Header) (PayloadSpec, error) {
	buf := h.Raw
	switch h.Variant {
	case VariantCAS100:
		return PayloadSpec{}, nil

	case VariantCAS50:
		if h.IsEnd {
			return PayloadSpec{}, nil
		}
		opcode := string(buf[1:4])
		if opcode == "VAL" {
			height := int(binary.BigEndian.Uint16(buf[7:9]))
			width := int(binary.BigEndian.Uint16(buf[9:11]))
			if width == 0 {
				// Testable property 10: a declared width of zero is
				// treated as one repetition, not zero.
				width = 1
			}
			return Repeat(14, height*width), nil
		}
		size := int(binary.BigEndian.Uint32(buf[7:11]))
		return PayloadSpec{Sizes: []int{size - 2}}, nil

	case VariantCAS40:
		opcode2 := ""
		if len(buf) >= 3 {
			opcode2 = string(buf[1:3])
		}
		switch opcode2 {
		case "DD":
			w, ht := int(buf[3]), int(buf[4])
			return PayloadSpec{Sizes: []int{ceilDiv8(w) * ht}}, nil
		case "DC":
			w, ht := int(buf[3]), int(buf[4])
			n := ceilDiv8(w) * ht
			return PayloadSpec{Sizes: []int{1 + n, 1 + n, 1 + n}}, nil
		case "P1":
			size := int(buf[4])<<8 | int(buf[5])
			return PayloadSpec{Sizes: []int{size - 2}}, nil
		case "PZ":
			size := int(buf[4])<<8 | int(buf[5])
			return PayloadSpec{Sizes: []int{190, size - 2}}, nil
		default:
			return PayloadSpec{}, cherr.New(cherr.KindUnimplemented, "unrecognised CAS40 opcode", nil)
		}
	}
	return PayloadSpec{}, cherr.New(cherr.KindInvalid, "unknown header variant", nil)
}

func ceilDiv8(n int) int {
	return int(math.Ceil(float64(n) / 8))
}
