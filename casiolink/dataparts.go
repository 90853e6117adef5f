package casiolink

import "github.com/daedaluz/cahute/cherr"

// ReceiveDataPart reads one data part of exactly size payload bytes,
// framed as 0x3E + payload + checksum. Colour-screenshot parts are
// known to ship with either of two checksum conventions in the wild
// (covering payload only, or covering the leading 0x3E as well); both
// are accepted on read, resolving the open question left by spec §4.3.
func ReceiveDataPart(r reader, size int) ([]byte, error) {
	frame := make([]byte, 1+size+1)
	if err := r.Read(frame, DataByteTimeout, DataByteTimeout); err != nil {
		return nil, err
	}
	if frame[0] != TypeData {
		return nil, cherr.New(cherr.KindCorrupt, "expected data packet", nil)
	}
	payload := frame[1 : 1+size]
	want := frame[len(frame)-1]
	withoutType := Checksum(payload)
	withType := Checksum(frame[:len(frame)-1])
	if want != withoutType && want != withType {
		return nil, cherr.New(cherr.KindCorrupt, "data part checksum mismatch", nil)
	}
	out := make([]byte, size)
	copy(out, payload)
	return out, nil
}

// SendDataPart writes payload framed as 0x3E + payload + checksum,
// always using the checksum-excludes-type-byte convention.
func SendDataPart(w writer, payload []byte) error {
	frame := make([]byte, 1+len(payload)+1)
	frame[0] = TypeData
	copy(frame[1:], payload)
	frame[len(frame)-1] = Checksum(payload)
	return w.Write(frame)
}

// ReceivePayload reads every part called for by spec and returns them
// concatenated in order.
func ReceivePayload(r reader, spec PayloadSpec) ([][]byte, error) {
	parts := make([][]byte, len(spec.Sizes))
	for i, size := range spec.Sizes {
		part, err := ReceiveDataPart(r, size)
		if err != nil {
			return nil, err
		}
		parts[i] = part
	}
	return parts, nil
}
