package seven

import (
	"fmt"
	"time"

	"github.com/daedaluz/cahute/cherr"
)

// Decode reads one Seven packet from r, waiting up to firstTimeout for
// its leading byte and ByteTimeout for every byte after. Escape bytes
// in an extended packet's data field are consumed and stripped as they
// arrive, since the declared length counts logical (unescaped) bytes
// while the wire carries extra escape bytes interspersed.
func Decode(r reader, firstTimeout time.Duration) (*Packet, error) {
	lead := make([]byte, 1)
	if err := r.Read(lead, firstTimeout, ByteTimeout); err != nil {
		return nil, err
	}
	switch lead[0] {
	case TypeCommand, TypeData, TypeRoleSwap, TypeCheck, TypeACK, TypeNAK, TypeTerm:
	default:
		return nil, cherr.New(cherr.KindCorrupt, "unrecognised packet type byte", nil)
	}

	head := make([]byte, 3)
	if err := r.Read(head, ByteTimeout, ByteTimeout); err != nil {
		return nil, err
	}
	var subtype int
	if _, err := fmt.Sscanf(string(head[0:2]), "%02X", &subtype); err != nil {
		return nil, cherr.New(cherr.KindCorrupt, "malformed subtype field", nil)
	}

	switch head[2] {
	case '0':
		cc := make([]byte, 2)
		if err := r.Read(cc, ByteTimeout, ByteTimeout); err != nil {
			return nil, err
		}
		if err := verifyChecksum(head, cc); err != nil {
			return nil, err
		}
		return &Packet{Type: lead[0], Subtype: subtype}, nil

	case '1':
		lenField := make([]byte, 4)
		if err := r.Read(lenField, ByteTimeout, ByteTimeout); err != nil {
			return nil, err
		}
		var size int
		if _, err := fmt.Sscanf(string(lenField), "%04X", &size); err != nil {
			return nil, cherr.New(cherr.KindCorrupt, "malformed length field", nil)
		}
		if size < MinDataSize || size > MaxDataSize {
			// Skip the declared payload plus its checksum so the stream
			// stays aligned on the next packet's leading byte.
			skip := make([]byte, size+2)
			if err := r.Read(skip, ByteTimeout, ByteTimeout); err != nil {
				return nil, err
			}
			return nil, cherr.New(cherr.KindDataSize, "extended packet data out of bounds", nil)
		}
		wire := make([]byte, 0, size)
		data := make([]byte, 0, size)
		one := make([]byte, 1)
		for len(data) < size {
			if err := r.Read(one, ByteTimeout, ByteTimeout); err != nil {
				return nil, err
			}
			b := one[0]
			wire = append(wire, b)
			if b == escapeByte {
				if err := r.Read(one, ByteTimeout, ByteTimeout); err != nil {
					return nil, err
				}
				wire = append(wire, one[0])
				if one[0] == escapeByte {
					data = append(data, escapeByte)
				} else {
					data = append(data, one[0]-0x20)
				}
				continue
			}
			data = append(data, b)
		}
		cc := make([]byte, 2)
		if err := r.Read(cc, ByteTimeout, ByteTimeout); err != nil {
			return nil, err
		}
		covered := append(append(append([]byte{}, head...), lenField...), wire...)
		if err := verifyChecksum(covered, cc); err != nil {
			return nil, err
		}
		return &Packet{Type: lead[0], Subtype: subtype, Data: data}, nil

	default:
		return nil, cherr.New(cherr.KindCorrupt, "malformed packet kind byte", nil)
	}
}

func verifyChecksum(covered, hexCC []byte) error {
	var want int
	if _, err := fmt.Sscanf(string(hexCC), "%02X", &want); err != nil {
		return cherr.New(cherr.KindCorrupt, "malformed checksum field", nil)
	}
	if byte(want) != checksum(covered) {
		return cherr.New(cherr.KindCorrupt, "packet checksum mismatch", nil)
	}
	return nil
}
