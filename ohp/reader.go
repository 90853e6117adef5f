package ohp

import (
	"fmt"

	"github.com/daedaluz/cahute/cherr"
)

var prologues = [][]byte{
	append([]byte{leadFrame}, SubtypeFixed...),
	append([]byte{leadFrame}, SubtypeVariable16...),
	append([]byte{leadFrame}, SubtypeVariable32...),
	append([]byte{leadCheck}, SubtypeCheck...),
}

// prologueLen is the shared length of every known prologue (one lead
// byte plus a 5-character subtype).
const prologueLen = 6

// checkAck is the literal reply to a CHECK/CAL00 keepalive, spec §4.5.
var checkAck = []byte{0x06, '0', '2', '0', '0', '1'}

// syncPrologue scans c byte by byte until the trailing prologueLen
// bytes read match one of the four known prologues, then returns which
// one matched. This is a straightforward one-byte sliding window rather
// than the largest-prefix-match skip the original implementation uses;
// both converge to the same synchronised state, this one just costs a
// few more bytes when the stream is badly desynchronised.
func syncPrologue(r reader) ([]byte, error) {
	window := make([]byte, 0, prologueLen)
	one := make([]byte, 1)
	for {
		if err := r.Read(one, byteTimeout, byteTimeout); err != nil {
			return nil, err
		}
		window = append(window, one[0])
		if len(window) > prologueLen {
			window = window[len(window)-prologueLen:]
		}
		if len(window) < prologueLen {
			continue
		}
		for _, p := range prologues {
			if string(window) == string(p) {
				return p, nil
			}
		}
	}
}

// ReadFrame reads the next frame from c, transparently answering any
// CHECK/CAL00 keepalives and resynchronising past any corrupted or
// truncated frame it encounters, per spec §4.5.
func ReadFrame(c interface {
	reader
	writer
}) (*Frame, error) {
	for {
		prologue, err := syncPrologue(c)
		if err != nil {
			return nil, err
		}
		subtype := string(prologue[1:])
		if subtype == SubtypeCheck {
			if err := c.Write(checkAck); err != nil {
				return nil, err
			}
			continue
		}

		var frame *Frame
		var ferr error
		switch subtype {
		case SubtypeFixed:
			frame, ferr = readFixedFrame(c)
		case SubtypeVariable16:
			frame, ferr = readVariableFrame(c, 6)
		case SubtypeVariable32:
			frame, ferr = readVariableFrame(c, 8)
		}
		if ferr != nil {
			if isCorrupt(ferr) {
				// One frame is lost; the caller is expected to continue
				// and the next call resynchronises on the next prologue.
				continue
			}
			return nil, ferr
		}
		return frame, nil
	}
}

func isCorrupt(err error) bool {
	ce, ok := err.(*cherr.Error)
	return ok && ce.Kind == cherr.KindCorrupt
}

func readFixedFrame(c reader) (*Frame, error) {
	const size = 1024
	payload := make([]byte, size)
	if err := c.Read(payload, byteTimeout, byteTimeout); err != nil {
		return nil, err
	}
	want, err := readChecksum(c)
	if err != nil {
		return nil, err
	}
	covered := append([]byte(SubtypeFixed), payload...)
	if checksum(covered) != want {
		return nil, cherr.New(cherr.KindCorrupt, "fixed frame checksum mismatch", nil)
	}
	return &Frame{Format: FormatMono2, Width: 128, Height: 64, Data: payload}, nil
}

func readVariableFrame(c reader, lengthDigits int) (*Frame, error) {
	lenField := make([]byte, lengthDigits)
	if err := c.Read(lenField, byteTimeout, byteTimeout); err != nil {
		return nil, err
	}
	var length int
	if _, err := fmt.Sscanf(string(lenField), fmt.Sprintf("%%0%dX", lengthDigits), &length); err != nil {
		return nil, cherr.New(cherr.KindCorrupt, "malformed frame length field", nil)
	}

	dims := make([]byte, 8)
	if err := c.Read(dims, byteTimeout, byteTimeout); err != nil {
		return nil, err
	}
	var height, width int
	if _, err := fmt.Sscanf(string(dims[0:4]), "%04X", &height); err != nil {
		return nil, cherr.New(cherr.KindCorrupt, "malformed frame height field", nil)
	}
	if _, err := fmt.Sscanf(string(dims[4:8]), "%04X", &width); err != nil {
		return nil, cherr.New(cherr.KindCorrupt, "malformed frame width field", nil)
	}

	formatField := make([]byte, 4)
	if err := c.Read(formatField, byteTimeout, byteTimeout); err != nil {
		return nil, err
	}
	format := string(formatField)

	want, err := FormatSize(format, width, height)
	if err != nil {
		return nil, err
	}
	if want != length {
		return nil, cherr.New(cherr.KindCorrupt, "declared frame length does not match format/size", nil)
	}

	payload := make([]byte, length)
	if err := c.Read(payload, byteTimeout, byteTimeout); err != nil {
		return nil, err
	}
	cc, err := readChecksum(c)
	if err != nil {
		return nil, err
	}

	var subtype string
	if lengthDigits == 6 {
		subtype = SubtypeVariable16
	} else {
		subtype = SubtypeVariable32
	}
	covered := append([]byte(subtype), lenField...)
	covered = append(covered, dims...)
	covered = append(covered, formatField...)
	covered = append(covered, payload...)
	if checksum(covered) != cc {
		return nil, cherr.New(cherr.KindCorrupt, "variable frame checksum mismatch", nil)
	}

	return &Frame{Format: format, Width: width, Height: height, Data: payload}, nil
}
