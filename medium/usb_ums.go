package medium

import (
	"encoding/binary"
	"time"

	"github.com/google/gousb"

	"github.com/daedaluz/cahute/cherr"
)

// USBMassStorageMedium wraps a USB Mass-Storage (class 0x08) interface
// and emulates a byte pipe over it via the Bulk-Only Transport, as
// described in spec §4.1 ("UMS as a byte pipe") and §6. It shares the
// same open/claim/endpoint-discovery shape as USBBulkMedium.
type USBMassStorageMedium struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	closed bool
}

// OpenUSBMassStorage opens the device at (bus, address) expecting a
// single Mass-Storage interface.
func OpenUSBMassStorage(ctx *gousb.Context, bus, address int) (*USBMassStorageMedium, error) {
	dev, err := findDevice(ctx, bus, address)
	if err != nil {
		return nil, err
	}
	iface, err := firstInterfaceDesc(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	if iface.Class != gousb.ClassCode(ClassMassStorage) {
		dev.Close()
		return nil, cherr.New(cherr.KindIncompatible, "interface is not mass storage class", nil)
	}
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		return nil, classifyUSB("set config", err)
	}
	intf, err := cfg.Interface(iface.Number, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		return nil, classifyUSB("claim interface", err)
	}
	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	for _, ep := range iface.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn {
			in, _ = intf.InEndpoint(ep.Number)
		} else {
			out, _ = intf.OutEndpoint(ep.Number)
		}
	}
	if in == nil || out == nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		return nil, cherr.New(cherr.KindIncompatible, "missing bulk endpoint pair", nil)
	}
	return &USBMassStorageMedium{ctx: ctx, dev: dev, config: cfg, intf: intf, in: in, out: out}, nil
}

func (m *USBMassStorageMedium) mediumMarker() {}
func (m *USBMassStorageMedium) IsSerial() bool { return false }

var cbwTag = [4]byte{'A', 'B', 'C', 'D'}

// SCSIRequest issues one Bulk-Only Transport command: a CBW, an optional
// data phase, then a CSW. Fails with Corrupt on a malformed CSW.
func (m *USBMassStorageMedium) SCSIRequest(cmd [16]byte, dir Direction, buf []byte) (byte, error) {
	cbw := make([]byte, 31)
	copy(cbw[0:4], "USBC")
	copy(cbw[4:8], cbwTag[:])
	binary.LittleEndian.PutUint32(cbw[8:12], uint32(len(buf)))
	if dir == DirectionIn {
		cbw[12] = 0x80
	}
	cbw[13] = 0 // LUN
	cbw[14] = 16
	copy(cbw[15:31], cmd[:])

	ctx, cancel := withOptionalTimeout(5 * time.Second)
	defer cancel()
	if _, err := m.out.WriteContext(ctx, cbw); err != nil {
		return 0, classifyUSB("scsi cbw", err)
	}

	if len(buf) > 0 {
		switch dir {
		case DirectionIn:
			if _, err := m.in.ReadContext(ctx, buf); err != nil {
				return 0, classifyUSB("scsi data-in", err)
			}
		case DirectionOut:
			if _, err := m.out.WriteContext(ctx, buf); err != nil {
				return 0, classifyUSB("scsi data-out", err)
			}
		}
	}

	csw := make([]byte, 13)
	if _, err := m.in.ReadContext(ctx, csw); err != nil {
		return 0, classifyUSB("scsi csw", err)
	}
	if string(csw[0:4]) != "USBS" || string(csw[4:8]) != string(cbwTag[:]) {
		return 0, cherr.New(cherr.KindCorrupt, "malformed CSW", nil)
	}
	return csw[12], nil
}

// Vendor byte-pipe commands, §4.1.
const (
	cmdStatus = 0xC0
	cmdRead   = 0xC1
	cmdWrite  = 0xC2
)

// Read emulates a byte-pipe read: it polls the device's available-byte
// count with command C0, backing off 10ms on zero before retrying, then
// issues C1 to fetch up to len(buf) bytes once some are available.
func (m *USBMassStorageMedium) Read(buf []byte, firstTimeout, _ time.Duration) (int, error) {
	deadline := time.Time{}
	if firstTimeout > 0 {
		deadline = time.Now().Add(firstTimeout)
	}
	for {
		var cmd [16]byte
		cmd[0] = cmdStatus
		status := make([]byte, 16)
		if _, err := m.SCSIRequest(cmd, DirectionIn, status); err != nil {
			return 0, err
		}
		avail := int(binary.BigEndian.Uint16(status[6:8]))
		if avail == 0 {
			if !deadline.IsZero() && time.Now().After(deadline) {
				return 0, cherr.New(cherr.KindTimeoutStart, "ums byte-pipe read", nil)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if avail > len(buf) {
			avail = len(buf)
		}
		var rcmd [16]byte
		rcmd[0] = cmdRead
		binary.BigEndian.PutUint16(rcmd[6:8], uint16(avail))
		if _, err := m.SCSIRequest(rcmd, DirectionIn, buf[:avail]); err != nil {
			return 0, err
		}
		return avail, nil
	}
}

// Write emulates a byte-pipe write with command C2, chunked at 65535
// bytes per SCSI request per §4.1.
func (m *USBMassStorageMedium) Write(buf []byte) error {
	const maxChunk = 65535
	for len(buf) > 0 {
		n := len(buf)
		if n > maxChunk {
			n = maxChunk
		}
		var cmd [16]byte
		cmd[0] = cmdWrite
		binary.BigEndian.PutUint16(cmd[6:8], uint16(n))
		if _, err := m.SCSIRequest(cmd, DirectionOut, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (m *USBMassStorageMedium) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.intf.Close()
	m.config.Close()
	return m.dev.Close()
}
