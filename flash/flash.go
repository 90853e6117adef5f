// Package flash implements the Seven-based flash-image write driver:
// probing, sector erase, RAM staging, commit, and finalisation, plus
// the sector layout policy that keeps a device bootable if a write is
// interrupted midway.
package flash

import (
	"time"

	"github.com/daedaluz/cahute/cherr"
	"github.com/daedaluz/cahute/seven"
)

// Command function codes, spec §4.7.
const (
	SubtypeProbe    = 0x76
	SubtypeErase    = 0x72
	SubtypeStage    = 0x70
	SubtypeCommit   = 0x71
	SubtypeFinalize = 0x78
)

// Layout constants, spec §4.7.
const (
	bootloaderSize   = 64 * 1024
	stageChunkSize   = 0x3FC
	stageBaseAddress = 0x88030000
	initialSector    = 0xA0010000
	firstSystemSect  = 0xA0020000
	sectorSize       = 64 * 1024
	resetSMEMEnd     = 0xA0400000
)

type link interface {
	Read(dst []byte, firstTimeout, nextTimeout time.Duration) error
	Write(buf []byte) error
}

// ProgressFunc reports bytes written so far out of total.
type ProgressFunc func(current, total int64)

// Writer drives the flash-image write sequence over a Seven link.
type Writer struct {
	c link
}

// New wraps c (the link's underlying Seven transport) as a flash Writer.
func New(c link) *Writer {
	return &Writer{c: c}
}

// sectorPlan returns the ascending system-sector addresses to erase and
// write, with the initial sector appended last so a mid-write failure
// leaves the device still bootable from its old initial sector. The
// image is laid out as [64KiB bootloader][64KiB initial sector][system
// sectors ascending from firstSystemSect]; sectorOffset converts a
// planned address back to its byte offset within the post-bootloader
// body.
func sectorPlan(imageSize int, resetSMEM bool) []uint32 {
	bodySize := uint32(imageSize - bootloaderSize - sectorSize)
	end := uint32(firstSystemSect) + bodySize
	if resetSMEM && end < resetSMEMEnd {
		end = resetSMEMEnd
	}
	var sectors []uint32
	for addr := uint32(firstSystemSect); addr < end; addr += sectorSize {
		sectors = append(sectors, addr)
	}
	sectors = append(sectors, uint32(initialSector))
	return sectors
}

func sectorOffset(addr uint32) int {
	if addr == initialSector {
		return 0
	}
	return sectorSize + int(addr-firstSystemSect)
}

func (w *Writer) probe() error {
	if err := seven.SendCommand(w.c, SubtypeProbe, seven.CommandHeader{}, nil); err != nil {
		return err
	}
	_, err := seven.Decode(w.c, seven.ByteTimeout)
	return err
}

func (w *Writer) eraseSector(addr uint32) error {
	header := seven.CommandHeader{Size: addr}
	if err := seven.SendCommand(w.c, SubtypeErase, header, nil); err != nil {
		return err
	}
	_, err := seven.Decode(w.c, seven.ByteTimeout)
	return err
}

func (w *Writer) stage(addr uint32, chunk []byte) error {
	header := seven.CommandHeader{Size: addr}
	if err := seven.SendCommand(w.c, SubtypeStage, header, chunk); err != nil {
		return err
	}
	_, err := seven.Decode(w.c, seven.ByteTimeout)
	return err
}

func (w *Writer) commit(sectorAddr uint32) error {
	header := seven.CommandHeader{Size: sectorAddr}
	if err := seven.SendCommand(w.c, SubtypeCommit, header, nil); err != nil {
		return err
	}
	_, err := seven.Decode(w.c, seven.ByteTimeout)
	return err
}

func (w *Writer) finalize() error {
	if err := seven.SendCommand(w.c, SubtypeFinalize, seven.CommandHeader{}, nil); err != nil {
		return err
	}
	_, err := seven.Decode(w.c, seven.ByteTimeout)
	return err
}

// Write sends image (the full image including its 64KiB bootloader
// region, which is skipped rather than transmitted) to the device,
// erasing, staging in stageChunkSize pieces and committing one sector
// at a time, finalising once every sector has landed.
func (w *Writer) Write(image []byte, resetSMEM bool, progress ProgressFunc) error {
	if len(image) <= bootloaderSize+sectorSize {
		return cherr.New(cherr.KindDataSize, "flash image smaller than the bootloader region", nil)
	}
	if err := w.probe(); err != nil {
		return err
	}

	sectors := sectorPlan(len(image), resetSMEM)
	body := image[bootloaderSize:]
	total := int64(len(body))
	var written int64

	for _, addr := range sectors {
		if err := w.eraseSector(addr); err != nil {
			return err
		}
		offset := sectorOffset(addr)
		end := offset + sectorSize
		if end > len(body) {
			end = len(body)
		}
		if offset >= len(body) {
			continue
		}
		sector := body[offset:end]
		for o := 0; o < len(sector); o += stageChunkSize {
			chunkEnd := o + stageChunkSize
			if chunkEnd > len(sector) {
				chunkEnd = len(sector)
			}
			if err := w.stage(stageBaseAddress+uint32(o), sector[o:chunkEnd]); err != nil {
				return err
			}
			written += int64(chunkEnd - o)
			if progress != nil {
				progress(written, total)
			}
		}
		if err := w.commit(addr); err != nil {
			return err
		}
	}
	return w.finalize()
}
