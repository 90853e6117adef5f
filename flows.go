package cahute

import (
	"io"

	"github.com/daedaluz/cahute/casiolink"
	"github.com/daedaluz/cahute/flash"
	"github.com/daedaluz/cahute/ohp"
	"github.com/daedaluz/cahute/seven"
)

// ProgressFunc reports transfer progress; current and total are byte
// counts. The flows in this file call it once, after the transfer has
// completed, and do not consult its return value: it cannot stop a
// transfer in progress.
type ProgressFunc func(current, total int64) bool

// OverwriteFunc is consulted when the peer reports that a target file
// already exists; returning true confirms the overwrite.
type OverwriteFunc func(name string) bool

// ListEntry is one entry reported to a ListFiles sink.
type ListEntry struct {
	Directory bool
	Name      string
	Size      uint32
}

// ListFunc receives one storage entry at a time; returning true stops
// the listing, surfaced as Interrupted.
type ListFunc func(ListEntry) bool

// ScreenFrame is one frame reported to a ReceiveScreen sink.
type ScreenFrame struct {
	Width, Height int
	Format        string
	Data          []byte
}

// ScreenFunc receives one screen frame at a time; returning true
// requests ReceiveScreen stop, surfaced as Interrupted.
type ScreenFunc func(ScreenFrame) bool

func shiftAllowed(l *Link, count int) bool {
	return count >= 3 && !l.medium.IsSerial() && !l.flags.has(DisableShift)
}

// RequestFile downloads path from the calculator's storage into dest.
func (l *Link) RequestFile(path string, dest io.Writer, progress ProgressFunc) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	lens, body, err := seven.EncodeParams(path)
	if err != nil {
		return err
	}
	header := seven.CommandHeader{ParamLens: lens}
	if err := seven.SendCommand(l.stream, seven.SubtypeRequestFile, header, body); err != nil {
		return err
	}
	subtype, replyHeader, _, err := seven.ReceiveCommand(l.stream)
	if err != nil {
		return err
	}
	if subtype != seven.SubtypeRequestFile {
		return newError(KindInvalid, "unexpected reply to request_file", nil)
	}
	data, err := seven.ReceiveDataStream(l.stream)
	if err != nil {
		return err
	}
	if uint32(len(data)) != replyHeader.Size {
		return newError(KindTruncated, "short file transfer", nil)
	}
	if _, err := dest.Write(data); err != nil {
		return newError(KindUnknown, "writing received file", err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// SendFile uploads size bytes read from src to path on the calculator's
// storage, invoking overwrite if the peer reports the file already
// exists.
func (l *Link) SendFile(path string, size uint32, src io.Reader, overwrite OverwriteFunc, progress ProgressFunc) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(src, data); err != nil {
		return newError(KindUnknown, "reading file to send", err)
	}

	lens, body, err := seven.EncodeParams(path)
	if err != nil {
		return err
	}
	header := seven.CommandHeader{Size: size, ParamLens: lens, Overwrite: seven.OverwriteAsk}
	if err := seven.SendCommand(l.stream, seven.SubtypeSendFile, header, body); err != nil {
		return err
	}

	p, err := seven.Decode(l.stream, seven.ByteTimeout)
	if err != nil {
		return err
	}
	switch {
	case p.Type == seven.TypeACK:
		// proceed
	case p.Type == seven.TypeNAK && p.Subtype == seven.SubtypeOverwrite:
		allow := overwrite != nil && overwrite(path)
		reply := seven.Packet{Type: seven.TypeACK, Subtype: seven.SubtypeConfirmOverwrite}
		if !allow {
			reply = seven.Packet{Type: seven.TypeNAK, Subtype: seven.SubtypeRejectOverwrite}
		}
		raw, err := seven.Encode(reply)
		if err != nil {
			return err
		}
		if err := l.stream.Write(raw); err != nil {
			return err
		}
		if !allow {
			return ErrNotOverwritten
		}
	default:
		return newError(KindInvalid, "unexpected reply to send_file", nil)
	}

	count := (len(data) + seven.ChunkSize - 1) / seven.ChunkSize
	shift := shiftAllowed(l, count)
	if err := seven.SendDataStream(l.stream, data, shift); err != nil {
		if shift {
			l.latchIrrecoverable()
		}
		return err
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// DeleteFile removes path from the calculator's storage.
func (l *Link) DeleteFile(path string) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	lens, body, err := seven.EncodeParams(path)
	if err != nil {
		return err
	}
	if err := seven.SendCommand(l.stream, seven.SubtypeDeleteFile, seven.CommandHeader{ParamLens: lens}, body); err != nil {
		return err
	}
	return expectACK(l)
}

// ListFiles enumerates every file the calculator reports, calling sink
// once per entry.
func (l *Link) ListFiles(sink ListFunc) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	if err := seven.SendCommand(l.stream, seven.SubtypeListFiles, seven.CommandHeader{}, nil); err != nil {
		return err
	}
	for {
		p, err := seven.Decode(l.stream, seven.ByteTimeout)
		if err != nil {
			return err
		}
		if p.Type == seven.TypeTerm {
			return nil
		}
		if p.Type != seven.TypeCommand {
			return newError(KindInvalid, "unexpected packet during list_files", nil)
		}
		header, err := seven.DecodeCommandHeader(p.Data)
		if err != nil {
			return err
		}
		params, err := header.Params(p.Data[seven.CommandHeaderSize:])
		if err != nil {
			return err
		}
		name := ""
		if len(params) > 0 {
			name = params[0]
		}
		entry := ListEntry{Directory: header.DataType != 0, Name: name, Size: header.Size}
		if err := sendBasicACK(l); err != nil {
			return err
		}
		if sink != nil && sink(entry) {
			return ErrInterrupted
		}
	}
}

// CopyFile asks the device to copy src to dst without a round trip
// through the host.
func (l *Link) CopyFile(src, dst string) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	lens, body, err := seven.EncodeParams(src, dst)
	if err != nil {
		return err
	}
	if err := seven.SendCommand(l.stream, seven.SubtypeCopyFile, seven.CommandHeader{ParamLens: lens}, body); err != nil {
		return err
	}
	return expectACK(l)
}

// OptimizeFilesystem asks the device to compact its storage.
func (l *Link) OptimizeFilesystem() error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	if err := seven.SendCommand(l.stream, seven.SubtypeOptimize, seven.CommandHeader{}, nil); err != nil {
		return err
	}
	return expectACK(l)
}

// StorageCapacity queries the total and free storage space, in bytes.
func (l *Link) StorageCapacity() (total, free uint64, err error) {
	if _, err := l.requireSeven(); err != nil {
		return 0, 0, err
	}
	if err := seven.SendCommand(l.stream, seven.SubtypeCapacity, seven.CommandHeader{}, nil); err != nil {
		return 0, 0, err
	}
	p, err := seven.Decode(l.stream, seven.ByteTimeout)
	if err != nil {
		return 0, 0, err
	}
	if p.Type != seven.TypeACK || len(p.Data) < seven.CommandHeaderSize {
		return 0, 0, newError(KindInvalid, "unexpected reply to capacity query", nil)
	}
	header, err := seven.DecodeCommandHeader(p.Data)
	if err != nil {
		return 0, 0, err
	}
	return uint64(header.Size), uint64(header.DataType) << 24, nil
}

// BackupROM downloads a full ROM image from the device, role-swapping
// so the device becomes the command sender for the duration.
func (l *Link) BackupROM(dest io.Writer, progress ProgressFunc) error {
	st, err := l.requireSeven()
	if err != nil {
		return err
	}
	_ = st
	if err := seven.SendCommand(l.stream, seven.SubtypeBackupROM, seven.CommandHeader{}, nil); err != nil {
		return err
	}
	if err := expectACK(l); err != nil {
		return err
	}
	if err := seven.RoleSwap(l.stream); err != nil {
		return err
	}
	data, err := seven.ReceiveDataStream(l.stream)
	if err != nil {
		l.latchIrrecoverable()
		return err
	}
	if _, err := dest.Write(data); err != nil {
		return newError(KindUnknown, "writing rom backup", err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// UploadAndRun uploads size bytes from src to loadAddress and starts
// executing it.
func (l *Link) UploadAndRun(src io.Reader, size uint32, loadAddress uint32) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(src, data); err != nil {
		return newError(KindUnknown, "reading program to run", err)
	}
	header := seven.CommandHeader{Size: loadAddress}
	if err := seven.SendCommand(l.stream, seven.SubtypeUploadAndRun, header, nil); err != nil {
		return err
	}
	if err := expectACK(l); err != nil {
		return err
	}
	count := (len(data) + seven.ChunkSize - 1) / seven.ChunkSize
	return seven.SendDataStream(l.stream, data, shiftAllowed(l, count))
}

// FlashImage writes a full flash image to the device via the flash
// package's sector-by-sector driver.
func (l *Link) FlashImage(image []byte, resetSMEM bool, progress func(current, total int64)) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	return flash.New(l.stream).Write(image, resetSMEM, progress)
}

// ReceiveScreen pumps screen-streaming frames to sink until sink
// requests a stop or the medium reports the device is gone.
func (l *Link) ReceiveScreen(sink ScreenFunc) error {
	if _, ok := l.state.(*ohpState); !ok {
		return newError(KindIncompatible, "receive_screen requires a Seven-OHP link", nil)
	}
	for {
		frame, err := ohp.ReadFrame(l.stream)
		if err != nil {
			return err
		}
		stop := sink != nil && sink(ScreenFrame{
			Width: frame.Width, Height: frame.Height, Format: frame.Format, Data: frame.Data,
		})
		if stop {
			return ErrInterrupted
		}
	}
}

// DataItem is one CASIOLINK unit of transfer: a header (spec §4.3's
// 0x3A-led frame) together with the payload bytes it calls for. CAS40/
// CAS50 carry this as one or more fixed-size data parts; CAS100 carries
// it as a chunked DATA-packet stream, both flattened here into a single
// concatenated Payload.
type DataItem struct {
	Header  *casiolink.Header
	Payload []byte
}

// ReceiveDataItem reads one CASIOLINK data item from the peer: its
// header, then the payload the header calls for. It returns
// ErrTerminated if the header read is the synthetic end-of-session
// marker rather than a real item.
func (l *Link) ReceiveDataItem() (*DataItem, error) {
	st, err := l.requireCASIOLINK()
	if err != nil {
		return nil, err
	}
	header, err := casiolink.ReceiveHeader(l.stream, st.variant)
	if err != nil {
		return nil, err
	}
	if header.IsEnd {
		return nil, ErrTerminated
	}
	if header.Variant == casiolink.VariantCAS100 {
		data, err := casiolink.ReceiveCAS100Data(l.stream)
		if err != nil {
			return nil, err
		}
		return &DataItem{Header: header, Payload: data}, nil
	}
	spec, err := casiolink.PayloadSizes(header)
	if err != nil {
		return nil, err
	}
	parts, err := casiolink.ReceivePayload(l.stream, spec)
	if err != nil {
		return nil, err
	}
	var payload []byte
	for _, part := range parts {
		payload = append(payload, part...)
	}
	return &DataItem{Header: header, Payload: payload}, nil
}

// SendDataItem writes header followed by the parts item.Payload splits
// into per header's own sizing table. For a CAS100 link the payload is
// instead sent as the chunked DATA-packet stream, which itself ends the
// data phase with the END1 terminator.
func (l *Link) SendDataItem(item DataItem) error {
	if _, err := l.requireCASIOLINK(); err != nil {
		return err
	}
	if err := casiolink.SendHeader(l.stream, item.Header); err != nil {
		return err
	}
	if item.Header.Variant == casiolink.VariantCAS100 {
		return casiolink.SendCAS100Data(l.stream, item.Payload)
	}
	spec, err := casiolink.PayloadSizes(item.Header)
	if err != nil {
		return err
	}
	offset := 0
	for _, size := range spec.Sizes {
		if offset+size > len(item.Payload) {
			return newError(KindDataSize, "data item payload shorter than header declares", nil)
		}
		if err := casiolink.SendDataPart(l.stream, item.Payload[offset:offset+size]); err != nil {
			return err
		}
		offset += size
	}
	return nil
}

func expectACK(l *Link) error {
	p, err := seven.Decode(l.stream, seven.ByteTimeout)
	if err != nil {
		return err
	}
	if p.Type != seven.TypeACK {
		return newError(KindInvalid, "expected acknowledgement", nil)
	}
	return nil
}

func sendBasicACK(l *Link) error {
	raw, err := seven.Encode(seven.Packet{Type: seven.TypeACK})
	if err != nil {
		return err
	}
	return l.stream.Write(raw)
}
