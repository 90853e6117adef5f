package seven

import (
	"fmt"

	"github.com/daedaluz/cahute/cherr"
)

// ChunkSize is the data-phase packet payload size, spec §4.4.
const ChunkSize = 256

// MaxRetransmits is the number of times a single packet is sent in all
// (the first send plus resends after NAK/RESEND) before the exchange
// gives up.
const MaxRetransmits = 3

// SubtypeResend is the NAK subtype requesting retransmission of the
// last packet.
const SubtypeResend = 0x01

// SubtypeACKTerm marks the final ACK of a data phase as also closing
// the session. ReceiveDataStream sends it; SendDataStream accepts any
// ACK subtype and does not report which one it received.
const SubtypeACKTerm = 0x01

func encodeDataPacket(total, index int, chunk []byte) []byte {
	return append([]byte(fmt.Sprintf("%04X%04X", total, index)), chunk...)
}

func decodeDataPacket(data []byte) (total, index int, chunk []byte, err error) {
	if len(data) < 8 {
		return 0, 0, nil, cherr.New(cherr.KindTruncated, "data packet header too short", nil)
	}
	if _, err := fmt.Sscanf(string(data[0:4]), "%04X", &total); err != nil {
		return 0, 0, nil, cherr.New(cherr.KindCorrupt, "malformed packet count field", nil)
	}
	if _, err := fmt.Sscanf(string(data[4:8]), "%04X", &index); err != nil {
		return 0, 0, nil, cherr.New(cherr.KindCorrupt, "malformed packet index field", nil)
	}
	return total, index, data[8:], nil
}

// SendDataStream transmits data as a sequence of DATA packets of at
// most ChunkSize bytes, each carrying its 1-based index and the total
// packet count, sending each packet at most MaxRetransmits times in all
// when the peer answers NAK/RESEND. When shift is true (the caller has already confirmed at
// least three chunks and a non-serial transport, where the extra
// latency of a strict stop-and-wait exchange is worth avoiding) each
// chunk is sent one packet ahead of the acknowledgement of the previous
// one; any error during the shifted window is reported as Irrecoverable
// since the peer's internal packet counters can no longer be trusted.
func SendDataStream(c link, data []byte, shift bool) error {
	chunks := splitChunks(data)
	total := len(chunks)
	if total == 0 {
		return nil
	}
	frames := make([][]byte, total)
	for i, chunk := range chunks {
		frames[i] = encodeDataPacket(total, i+1, chunk)
	}

	if !shift || total < 3 {
		for i, frame := range frames {
			last := i == total-1
			if err := sendFrameWithRetry(c, frame); err != nil {
				return err
			}
			if last {
				return nil
			}
		}
		return nil
	}

	for i, frame := range frames {
		raw, err := Encode(Packet{Type: TypeData, Data: frame})
		if err != nil {
			return err
		}
		if err := c.Write(raw); err != nil {
			return cherr.New(cherr.KindIrrecoverable, "write failed during shifted data phase", err)
		}
		if i > 0 {
			if err := awaitAckOrResend(c, frames[i-1]); err != nil {
				return cherr.New(cherr.KindIrrecoverable, "ack failed during shifted data phase", err)
			}
		}
	}
	return awaitAckOrResend(c, frames[total-1])
}

func sendFrameWithRetry(c link, frame []byte) error {
	raw, err := Encode(Packet{Type: TypeData, Data: frame})
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		if err := c.Write(raw); err != nil {
			return err
		}
		p, err := Decode(c, ByteTimeout)
		if err != nil {
			return err
		}
		if p.Type == TypeACK {
			return nil
		}
		if p.Type == TypeNAK && p.Subtype == SubtypeResend && attempt < MaxRetransmits-1 {
			continue
		}
		return cherr.New(cherr.KindCorrupt, "data packet rejected", nil)
	}
}

func awaitAckOrResend(c link, frame []byte) error {
	raw, err := Encode(Packet{Type: TypeData, Data: frame})
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		p, err := Decode(c, ByteTimeout)
		if err != nil {
			return err
		}
		if p.Type == TypeACK {
			return nil
		}
		if p.Type == TypeNAK && p.Subtype == SubtypeResend && attempt < MaxRetransmits-1 {
			if err := c.Write(raw); err != nil {
				return err
			}
			continue
		}
		return cherr.New(cherr.KindCorrupt, "data packet rejected", nil)
	}
}

// ReceiveDataStream reads a full data phase, learning the total packet
// count from the first DATA packet's NNNN field, acknowledging each
// packet and requesting retransmission (NAK/RESEND, up to
// MaxRetransmits attempts) on a decode failure.
func ReceiveDataStream(c link) ([]byte, error) {
	var out []byte
	total := -1
	index := 0
	for total < 0 || index < total {
		var p *Packet
		var derr error
		for attempt := 0; attempt < MaxRetransmits; attempt++ {
			p, derr = Decode(c, ByteTimeout)
			if derr == nil {
				break
			}
			if err := sendBasic(c, TypeNAK, SubtypeResend); err != nil {
				return nil, err
			}
		}
		if derr != nil {
			return nil, derr
		}
		if p.Type != TypeData {
			return nil, cherr.New(cherr.KindInvalid, "expected data packet", nil)
		}
		pktTotal, pktIndex, chunk, err := decodeDataPacket(p.Data)
		if err != nil {
			return nil, err
		}
		if total < 0 {
			total = pktTotal
		}
		if pktIndex != index+1 {
			return nil, cherr.New(cherr.KindInvalid, "data packet out of sequence", nil)
		}
		out = append(out, chunk...)
		index = pktIndex
		if index == total {
			if err := sendBasic(c, TypeACK, SubtypeACKTerm); err != nil {
				return nil, err
			}
		} else if err := sendBasic(c, TypeACK, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func splitChunks(data []byte) [][]byte {
	var chunks [][]byte
	for offset := 0; offset < len(data); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	return chunks
}
