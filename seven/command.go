package seven

import (
	"fmt"

	"github.com/daedaluz/cahute/cherr"
)

// CommandHeaderSize is the length of the fixed ASCII-hex header every
// file-transfer COMMAND packet's extended payload carries ahead of its
// variable-length parameters, spec §4.4: `OO DD SSSSSSSS L1..L6`, two
// hex digits per field except the 8-digit size, 24 bytes total.
const CommandHeaderSize = 24

// Overwrite modes, carried in the header's OO field.
const (
	OverwriteAsk    = 0x00
	OverwriteForce  = 0x01
	OverwriteRefuse = 0x02
)

// CommandHeader is the fixed header of a file-transfer COMMAND packet.
type CommandHeader struct {
	Overwrite byte
	DataType  byte
	Size      uint32
	ParamLens [6]byte
}

// Encode renders h as its 24-byte ASCII-hex wire form.
func (h CommandHeader) Encode() []byte {
	out := fmt.Sprintf("%02X%02X%08X", h.Overwrite, h.DataType, h.Size)
	for _, l := range h.ParamLens {
		out += fmt.Sprintf("%02X", l)
	}
	return []byte(out)
}

// DecodeCommandHeader parses the fixed header from the front of an
// extended COMMAND packet's data field.
func DecodeCommandHeader(data []byte) (CommandHeader, error) {
	if len(data) < CommandHeaderSize {
		return CommandHeader{}, cherr.New(cherr.KindTruncated, "command header too short", nil)
	}
	var h CommandHeader
	var overwrite, dataType int
	if _, err := fmt.Sscanf(string(data[0:2]), "%02X", &overwrite); err != nil {
		return CommandHeader{}, cherr.New(cherr.KindCorrupt, "malformed overwrite field", nil)
	}
	if _, err := fmt.Sscanf(string(data[2:4]), "%02X", &dataType); err != nil {
		return CommandHeader{}, cherr.New(cherr.KindCorrupt, "malformed data type field", nil)
	}
	var size uint32
	if _, err := fmt.Sscanf(string(data[4:12]), "%08X", &size); err != nil {
		return CommandHeader{}, cherr.New(cherr.KindCorrupt, "malformed size field", nil)
	}
	h.Overwrite, h.DataType, h.Size = byte(overwrite), byte(dataType), size
	for i := 0; i < 6; i++ {
		var l int
		field := data[12+i*2 : 14+i*2]
		if _, err := fmt.Sscanf(string(field), "%02X", &l); err != nil {
			return CommandHeader{}, cherr.New(cherr.KindCorrupt, "malformed parameter length field", nil)
		}
		h.ParamLens[i] = byte(l)
	}
	return h, nil
}

// Params splits the bytes following the fixed header into the
// variable-length parameters h.ParamLens declares.
func (h CommandHeader) Params(rest []byte) ([]string, error) {
	params := make([]string, 0, 6)
	offset := 0
	for _, l := range h.ParamLens {
		if l == 0 {
			continue
		}
		if offset+int(l) > len(rest) {
			return nil, cherr.New(cherr.KindTruncated, "command parameter runs past payload", nil)
		}
		params = append(params, string(rest[offset:offset+int(l)]))
		offset += int(l)
	}
	return params, nil
}

// EncodeParams builds the ParamLens field and concatenated parameter
// bytes for up to six ASCII parameters.
func EncodeParams(params ...string) ([6]byte, []byte, error) {
	if len(params) > 6 {
		return [6]byte{}, nil, cherr.New(cherr.KindInvalid, "too many command parameters", nil)
	}
	var lens [6]byte
	var body []byte
	for i, p := range params {
		if len(p) > 255 {
			return [6]byte{}, nil, cherr.New(cherr.KindDataSize, "command parameter too long", nil)
		}
		lens[i] = byte(len(p))
		body = append(body, []byte(p)...)
	}
	return lens, body, nil
}

// Command function codes (subtypes), spec §4.4/§4.8, as used to request
// file-transfer and control operations over a discovered link.
const (
	SubtypeNegotiate    = 0x02
	SubtypeSendFile     = 0x45
	SubtypeRequestFile  = 0x46
	SubtypeDeleteFile   = 0x4A
	SubtypeListFiles    = 0x4B
	SubtypeCopyFile     = 0x4C
	SubtypeOptimize     = 0x4D
	SubtypeCapacity     = 0x4E
	SubtypeBackupROM    = 0x4F
	SubtypeUploadAndRun = 0x28
)

// SendCommand writes a COMMAND packet whose payload is header followed
// by the concatenated bytes of params.
func SendCommand(c link, subtype int, header CommandHeader, params []byte) error {
	payload := append(header.Encode(), params...)
	raw, err := Encode(Packet{Type: TypeCommand, Subtype: subtype, Data: payload})
	if err != nil {
		return err
	}
	return c.Write(raw)
}

// ReceiveCommand reads a COMMAND packet and splits it back into its
// subtype, fixed header, and raw parameter bytes.
func ReceiveCommand(c link) (int, CommandHeader, []byte, error) {
	p, err := Decode(c, ByteTimeout)
	if err != nil {
		return 0, CommandHeader{}, nil, err
	}
	if p.Type != TypeCommand {
		return 0, CommandHeader{}, nil, cherr.New(cherr.KindInvalid, "expected command packet", nil)
	}
	header, err := DecodeCommandHeader(p.Data)
	if err != nil {
		return 0, CommandHeader{}, nil, err
	}
	return p.Subtype, header, p.Data[CommandHeaderSize:], nil
}
