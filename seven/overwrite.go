package seven

import "github.com/daedaluz/cahute/cherr"

// Overwrite arbitration subtypes carried on NAK/ACK packets, spec §4.4.
const (
	SubtypeConfirmOverwrite = 0x01
	SubtypeOverwrite        = 0x02
	SubtypeRejectOverwrite  = 0x03
)

// Arbiter decides whether an existing file on the receiving side may be
// replaced, for use with AnswerOverwrite. The root package's SendFile
// does not use it; it consults its own OverwriteFunc.
type Arbiter func(filename string) bool

// RequestOverwrite asks the peer for permission to overwrite an
// existing file, sending NAK/OVERWRITE and awaiting either ACK/CONFIRM_OVERWRITE or
// NAK/REJECT_OVERWRITE.
func RequestOverwrite(c link) (bool, error) {
	if err := sendBasic(c, TypeNAK, SubtypeOverwrite); err != nil {
		return false, err
	}
	p, err := Decode(c, ByteTimeout)
	if err != nil {
		return false, err
	}
	switch {
	case p.Type == TypeACK && p.Subtype == SubtypeConfirmOverwrite:
		return true, nil
	case p.Type == TypeNAK && p.Subtype == SubtypeRejectOverwrite:
		return false, nil
	default:
		return false, cherr.New(cherr.KindInvalid, "unexpected overwrite arbitration reply", nil)
	}
}

// AnswerOverwrite waits for a NAK/OVERWRITE request and answers it by
// consulting arbiter, which is told the name of the file about to be
// replaced.
func AnswerOverwrite(c link, filename string, arbiter Arbiter) (bool, error) {
	p, err := Decode(c, ByteTimeout)
	if err != nil {
		return false, err
	}
	if p.Type != TypeNAK || p.Subtype != SubtypeOverwrite {
		return false, cherr.New(cherr.KindInvalid, "expected overwrite request", nil)
	}
	allow := arbiter != nil && arbiter(filename)
	if allow {
		return true, sendBasic(c, TypeACK, SubtypeConfirmOverwrite)
	}
	return false, sendBasic(c, TypeNAK, SubtypeRejectOverwrite)
}
