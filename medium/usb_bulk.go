package medium

import (
	"context"
	"time"

	"github.com/google/gousb"

	"github.com/daedaluz/cahute/cherr"
)

const (
	// ClassMassStorage and ClassVendor are the USB interface class bytes
	// OpenUSBMassStorage and OpenUSBBulk each require; an interface of
	// any other class fails with Incompatible (spec §4.1 open_usb).
	ClassMassStorage = 0x08
	ClassVendor      = 0xFF
)

// USBBulkMedium wraps a vendor-class (0xFF) USB interface exposing one
// bulk IN and one bulk OUT endpoint, grounded on the same google/gousb
// open/claim/endpoint-discovery sequence the pack's ASIC USB driver uses
// (OpenDevice → Config → Interface → {In,Out}Endpoint), generalized from
// opening by VID/PID to opening by bus/address since discovery is an
// external collaborator here.
type USBBulkMedium struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	closed bool
}

// OpenUSBBulk opens the device at (bus, address), claims its single
// interface, and discovers the bulk IN/OUT endpoint addresses from the
// interface descriptor. Fails with Incompatible if the interface is not
// vendor class, NotFound if no such device exists, PermissionDenied if
// the OS denies the claim.
func OpenUSBBulk(ctx *gousb.Context, bus, address int, _ Role) (*USBBulkMedium, error) {
	dev, err := findDevice(ctx, bus, address)
	if err != nil {
		return nil, err
	}

	iface, err := firstInterfaceDesc(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	if iface.Class != gousb.ClassCode(ClassVendor) {
		dev.Close()
		return nil, cherr.New(cherr.KindIncompatible, "interface is not vendor class", nil)
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
			if in, err = intf.InEndpoint(ep.Number); err != nil {
				intf.Close()
				cfg.Close()
				dev.Close()
				return nil, classifyUSB("open in endpoint", err)
			}
		} else {
			if out, err = intf.OutEndpoint(ep.Number); err != nil {
				intf.Close()
				cfg.Close()
				dev.Close()
				return nil, classifyUSB("open out endpoint", err)
			}
		}
	}
	if in == nil || out == nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		return nil, cherr.New(cherr.KindIncompatible, "missing bulk endpoint pair", nil)
	}

	return &USBBulkMedium{ctx: ctx, dev: dev, config: cfg, intf: intf, in: in, out: out}, nil
}

func (m *USBBulkMedium) mediumMarker() {}

func (m *USBBulkMedium) IsSerial() bool { return false }

func (m *USBBulkMedium) Read(buf []byte, firstTimeout, _ time.Duration) (int, error) {
	ctx, cancel := withOptionalTimeout(firstTimeout)
	defer cancel()
	n, err := m.in.ReadContext(ctx, buf)
	if err != nil {
		return n, classifyUSB("usb bulk read", err)
	}
	return n, nil
}

func (m *USBBulkMedium) Write(buf []byte) error {
	ctx, cancel := withOptionalTimeout(0)
	defer cancel()
	for len(buf) > 0 {
		n, err := m.out.WriteContext(ctx, buf)
		if err != nil {
			return classifyUSB("usb bulk write", err)
		}
		buf = buf[n:]
	}
	return nil
}

func (m *USBBulkMedium) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.intf.Close()
	m.config.Close()
	return m.dev.Close()
}

func withOptionalTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}

func findDevice(ctx *gousb.Context, bus, address int) (*gousb.Device, error) {
	var found *gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Bus == bus && desc.Address == address {
			return true
		}
		return false
	})
	for _, d := range devs {
		if found == nil {
			found = d
		} else {
			d.Close()
		}
	}
	if err != nil && found == nil {
		return nil, classifyUSB("open device", err)
	}
	if found == nil {
		return nil, cherr.New(cherr.KindNotFound, "no device at given bus/address", nil)
	}
	return found, nil
}

func firstInterfaceDesc(dev *gousb.Device) (gousb.InterfaceSetting, error) {
	cfgDesc := dev.Desc.Configs[1]
	for _, intf := range cfgDesc.Interfaces {
		if len(intf.AltSettings) > 0 {
			return intf.AltSettings[0], nil
		}
	}
	return gousb.InterfaceSetting{}, cherr.New(cherr.KindIncompatible, "no usable interface", nil)
}

func classifyUSB(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case gousb.ErrorAccess:
		return cherr.New(cherr.KindPermissionDenied, op, err)
	case gousb.ErrorNoDevice, gousb.ErrorPipe, gousb.ErrorIO:
		return cherr.New(cherr.KindGone, op, err)
	case gousb.ErrorNotFound:
		return cherr.New(cherr.KindNotFound, op, err)
	case gousb.ErrorTimeout:
		return cherr.New(cherr.KindTimeout, op, err)
	default:
		return cherr.New(cherr.KindUnknown, op, err)
	}
}
