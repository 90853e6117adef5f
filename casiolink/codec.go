package casiolink

import (
	"errors"
	"time"

	"github.com/daedaluz/cahute/cherr"
)

func kindOf(err error) (cherr.Kind, bool) {
	var ce *cherr.Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// rw bundles reader and writer for the handshake and data-phase helpers
// that need both directions.
type rw interface {
	reader
	writer
}

const (
	handshakeByteTimeout = time.Second
	handshakeRetries     = 3
)

// Initiate performs the CASIOLINK handshake, spec §4.3. The active side
// repeatedly sends a START byte until it sees ESTABLISHED; the passive
// side waits for START and answers with ESTABLISHED. Initiate handles
// only the handshake at open; a START byte arriving mid-stream in place
// of a header is answered by ReinitiateIfStart.
func Initiate(c rw, active bool) error {
	if active {
		for attempt := 0; attempt < handshakeRetries; attempt++ {
			if err := c.Write([]byte{TypeStart}); err != nil {
				return err
			}
			resp := make([]byte, 1)
			err := readTimeout(c, resp, handshakeByteTimeout)
			if err == nil && resp[0] == TypeEstablished {
				return nil
			}
			if err != nil {
				if kind, ok := kindOf(err); !ok || (kind != cherr.KindTimeout && kind != cherr.KindTimeoutStart) {
					return err
				}
			}
		}
		return cherr.New(cherr.KindTimeout, "no response to handshake initiation", nil)
	}

	resp := make([]byte, 1)
	if err := readTimeout(c, resp, 0); err != nil {
		return err
	}
	if resp[0] != TypeStart {
		return cherr.New(cherr.KindCorrupt, "expected handshake start byte", nil)
	}
	return c.Write([]byte{TypeEstablished})
}

// ReinitiateIfStart checks whether b is a START byte arriving in place
// of an expected header, and if so answers it and reports that the
// handshake restarted so the caller can resume reading a header.
func ReinitiateIfStart(c rw, b byte) (bool, error) {
	if b != TypeStart {
		return false, nil
	}
	if err := c.Write([]byte{TypeEstablished}); err != nil {
		return false, err
	}
	return true, nil
}

func readTimeout(r reader, dst []byte, d time.Duration) error {
	return r.Read(dst, d, d)
}

// Terminate sends the synthetic end-of-session header for variant and
// waits for the peer's acknowledgement.
func Terminate(c rw, variant Variant) error {
	var raw []byte
	switch variant {
	case VariantCAS100:
		raw = make([]byte, headerLen40)
		raw[0] = TypeHeader
		copy(raw[1:5], "END1")
	case VariantCAS50:
		raw = make([]byte, headerLen50)
		raw[0] = TypeHeader
		copy(raw[1:4], "END")
		raw[4] = 0xFF
	default:
		raw = make([]byte, headerLen40)
		raw[0] = TypeHeader
		raw[1] = 0x17
		raw[2] = 0xFF
	}
	raw[len(raw)-1] = Checksum(raw[:len(raw)-1])
	if err := c.Write(raw); err != nil {
		return err
	}
	resp := make([]byte, 1)
	return readTimeout(c, resp, handshakeByteTimeout)
}

// RespondCorrupted answers a checksum failure with the CORRUPTED packet.
// It only writes that byte; it does not mark the link irrecoverable.
func RespondCorrupted(w writer) error {
	return w.Write([]byte{TypeCorrupted})
}

// RespondInvalidData answers a structurally-sound but semantically
// unexpected frame (wrong opcode for the current phase, unsupported
// variant) with INVALID_DATA. Like RespondCorrupted it only writes the
// byte and leaves the link's state unchanged.
func RespondInvalidData(w writer) error {
	return w.Write([]byte{TypeInvalidData})
}

const cas100DataChunk = 1024

// ReceiveCAS100Data reads the CAS100 data phase: a stream of fixed
// 1024-byte DATA packets, each acknowledged individually, continuing
// until the sender transmits an END1 header in place of the next DATA
// packet's leading byte. Grounded on the chunked upload/download loop
// of the original CAS100 driver.
func ReceiveCAS100Data(c rw) ([]byte, error) {
	var out []byte
	for {
		lead := make([]byte, 1)
		if err := readTimeout(c, lead, DataByteTimeout); err != nil {
			return nil, err
		}
		switch lead[0] {
		case TypeData:
			rest := make([]byte, cas100DataChunk+1)
			if err := readTimeout(c, rest, DataByteTimeout); err != nil {
				return nil, err
			}
			payload := rest[:cas100DataChunk]
			want := rest[cas100DataChunk]
			if Checksum(payload) != want {
				RespondCorrupted(c)
				return nil, cherr.New(cherr.KindCorrupt, "cas100 data checksum mismatch", nil)
			}
			out = append(out, payload...)
			if err := c.Write([]byte{TypeACK}); err != nil {
				return nil, err
			}
		case TypeHeader:
			header := make([]byte, headerLen40-1)
			if err := readTimeout(c, header, DataByteTimeout); err != nil {
				return nil, err
			}
			full := append(lead, header...)
			if Checksum(full[:len(full)-1]) != full[len(full)-1] {
				return nil, cherr.New(cherr.KindCorrupt, "cas100 end header checksum mismatch", nil)
			}
			if string(full[1:5]) != "END1" {
				return nil, cherr.New(cherr.KindInvalid, "unexpected cas100 header mid data phase", nil)
			}
			return out, nil
		default:
			return nil, cherr.New(cherr.KindCorrupt, "unexpected byte in cas100 data phase", nil)
		}
	}
}

// SendCAS100Data writes data as a sequence of 1024-byte DATA packets,
// zero-padding the final short chunk, waiting for an ACK after each,
// then sends the END1 terminator header.
func SendCAS100Data(c rw, data []byte) error {
	for offset := 0; offset < len(data); offset += cas100DataChunk {
		end := offset + cas100DataChunk
		chunk := make([]byte, cas100DataChunk)
		if end > len(data) {
			copy(chunk, data[offset:])
		} else {
			copy(chunk, data[offset:end])
		}
		frame := make([]byte, 1+cas100DataChunk+1)
		frame[0] = TypeData
		copy(frame[1:], chunk)
		frame[len(frame)-1] = Checksum(chunk)
		if err := c.Write(frame); err != nil {
			return err
		}
		ack := make([]byte, 1)
		if err := readTimeout(c, ack, DataByteTimeout); err != nil {
			return err
		}
		if ack[0] != TypeACK {
			return cherr.New(cherr.KindInvalid, "peer rejected cas100 data chunk", nil)
		}
	}
	return Terminate(c, VariantCAS100)
}
