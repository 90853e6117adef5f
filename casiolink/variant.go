package casiolink

// Variant identifies which CASIOLINK header dialect is in play. Auto
// lets ReceiveHeader sniff it from the opcode field of the first header
// it reads; the others pin the codec to a single family, either because
// the caller already knows (link reopened mid-session) or for tests.
type Variant int

const (
	VariantAuto Variant = iota
	VariantCAS40
	VariantCAS50
	VariantCAS100
)

func (v Variant) String() string {
	switch v {
	case VariantAuto:
		return "auto"
	case VariantCAS40:
		return "CAS40"
	case VariantCAS50:
		return "CAS50"
	case VariantCAS100:
		return "CAS100"
	default:
		return "unknown"
	}
}

// cas100Opcodes are the 4-byte opcodes recognised at header[1:5] that
// select the CAS100 dialect.
var cas100Opcodes = map[string]bool{
	"ADN1": true, "ADN2": true, "END1": true, "FCL1": true,
	"FMV1": true, "MDL1": true, "REQ1": true, "REQ2": true,
}

// cas50Prefixes are the 3-byte opcode prefixes at header[1:4] that
// select the CAS50 dialect; the fourth opcode byte at header[4] carries
// a subtype (0x00 for an ordinary part, 0xFF for the synthetic
// termination marker) and is not part of the match.
var cas50Prefixes = map[string]bool{
	"END": true, "FNC": true, "IMG": true, "MEM": true,
	"REQ": true, "TXT": true, "VAL": true,
}

// detectVariant inspects the opcode region of a freshly-read 40-byte
// header and reports which dialect it belongs to. CAS40 is the fallback
// when no CAS100 or CAS50 opcode matches, since CAS40 carries no
// internally-consistent opcode table of its own (spec §4.3).
func detectVariant(header []byte) Variant {
	if len(header) >= 5 && cas100Opcodes[string(header[1:5])] {
		return VariantCAS100
	}
	if len(header) >= 4 && cas50Prefixes[string(header[1:4])] {
		return VariantCAS50
	}
	return VariantCAS40
}
