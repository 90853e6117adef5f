package cahute

import (
	"strconv"
	"strings"
)

// DeviceInfo is the decoded Protocol 7.00 device-information blob
// returned by a Seven discover() exchange, spec §6.
type DeviceInfo struct {
	HardwareID      string
	CPUID           string
	PreprogrammedKB int
	FlashROMKB      int
	RAMKB           int
	ROMVersion      string
	BootcodeVersion string
	BootcodeOffset  uint32
	BootcodeSizeKB  int
	OSVersion       string
	OSOffset        uint32
	OSSizeKB        int
	ProductID       string
	Username        string
	Organisation    string
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func decimalField(b []byte) int {
	n, _ := strconv.Atoi(strings.TrimSpace(trimField(b)))
	return n
}

func hexField(b []byte) uint32 {
	n, _ := strconv.ParseUint(strings.TrimSpace(trimField(b)), 16, 32)
	return uint32(n)
}

// ParseDeviceInfo decodes blob per the fixed-offset table of spec §6.
// blob must be at least 164 bytes; a blob of 188 bytes or more also
// carries the organisation field and a 20-byte (rather than 16-byte)
// username.
func ParseDeviceInfo(blob []byte) (*DeviceInfo, error) {
	if len(blob) < 164 {
		return nil, newError(KindTruncated, "device info blob too short", nil)
	}
	field := func(offset, size int) []byte {
		if offset+size > len(blob) {
			return nil
		}
		return blob[offset : offset+size]
	}

	usernameSize := 16
	if len(blob) >= 188 {
		usernameSize = 20
	}

	info := &DeviceInfo{
		HardwareID:      trimField(field(0, 8)),
		CPUID:           trimField(field(8, 16)),
		PreprogrammedKB: decimalField(field(24, 8)),
		FlashROMKB:      decimalField(field(32, 8)),
		RAMKB:           decimalField(field(40, 8)),
		ROMVersion:      trimField(field(48, 16)),
		BootcodeVersion: trimField(field(64, 16)),
		BootcodeOffset:  hexField(field(80, 8)),
		BootcodeSizeKB:  decimalField(field(88, 8)),
		OSVersion:       trimField(field(96, 16)),
		OSOffset:        hexField(field(112, 8)),
		OSSizeKB:        decimalField(field(120, 8)),
		ProductID:       trimField(field(132, 16)),
		Username:        trimField(field(148, usernameSize)),
	}
	if len(blob) >= 188 {
		info.Organisation = trimField(field(168, 20))
	}
	return info, nil
}
