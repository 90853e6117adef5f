package cahute

import (
	"time"

	"github.com/daedaluz/cahute/casiolink"
	"github.com/daedaluz/cahute/internal/xlog"
	"github.com/daedaluz/cahute/medium"
	"github.com/daedaluz/cahute/seven"
)

// Protocol selects which framed protocol family a serial or USB open
// negotiates.
type Protocol int

const (
	ProtocolSeven Protocol = iota
	ProtocolCAS40
	ProtocolCAS50
	ProtocolCAS100
)

// defaultSerialParams picks the stop-bit count and baud rate spec §4.6
// assigns to each protocol when the caller leaves them unset.
func defaultSerialParams(protocol Protocol) medium.SerialParams {
	switch protocol {
	case ProtocolCAS40:
		return medium.SerialParams{Speed: 4800, StopBits: medium.OneStopBit}
	case ProtocolCAS50:
		return medium.SerialParams{Speed: 9600, StopBits: medium.OneStopBit}
	case ProtocolCAS100:
		return medium.SerialParams{Speed: 38400, StopBits: medium.TwoStopBits}
	default:
		return medium.SerialParams{Speed: 9600, StopBits: medium.TwoStopBits}
	}
}

// OpenSerial opens path as the given protocol. Any zero-valued field of
// params is filled in with the protocol's default (spec §4.6); a
// nonzero Speed or StopBits overrides the default.
func OpenSerial(path string, protocol Protocol, flags Flags, params medium.SerialParams) (*Link, error) {
	defaults := defaultSerialParams(protocol)
	if params.Speed == 0 {
		params.Speed = defaults.Speed
	}
	if params.StopBits == 0 {
		params.StopBits = defaults.StopBits
	}
	m, err := medium.OpenSerial(path, params)
	if err != nil {
		return nil, err
	}
	l := newLink(m, flags|CloseMedium|CloseProtocol)
	if err := l.initProtocol(protocol, flags); err != nil {
		m.Close()
		return nil, err
	}
	return l, nil
}

// USBOpener is satisfied by an already-resolved USB target: a bus and
// address pair, as handed back by an external discovery collaborator
// (spec.md §1 excludes discovery from the core).
type USBOpener struct {
	Bus, Address int
}

// OpenUSB opens a USB vendor-class bulk interface at target and
// negotiates either Seven or Seven-OHP depending on the OHP flag.
func OpenUSB(ctx *medium.USBContext, target USBOpener, flags Flags) (*Link, error) {
	m, err := medium.OpenUSBBulk(ctx.Raw(), target.Bus, target.Address, roleFromFlags(flags))
	if err != nil {
		return nil, err
	}
	l := newLink(m, flags|CloseMedium|CloseProtocol)
	if flags.has(OHP) {
		l.state = &ohpState{}
		return l, nil
	}
	protocol := ProtocolSeven
	if err := l.initProtocol(protocol, flags); err != nil {
		m.Close()
		return nil, err
	}
	return l, nil
}

// OpenUSBMassStorage opens a USB Mass-Storage interface as a raw byte
// pipe. No protocol is negotiated: file/storage operations return
// Unimplemented on a link opened this way, spec §4.6.
func OpenUSBMassStorage(ctx *medium.USBContext, target USBOpener, flags Flags) (*Link, error) {
	m, err := medium.OpenUSBMassStorage(ctx.Raw(), target.Bus, target.Address)
	if err != nil {
		return nil, err
	}
	return newLink(m, flags|CloseMedium), nil
}

// Discoverer resolves candidate USB targets; OpenUSBSimple polls it
// rather than touching device enumeration itself.
type Discoverer interface {
	Discover() ([]USBOpener, error)
}

// OpenUSBSimple polls discoverer for up to 5 attempts, 1s apart. If
// exactly one device is found it is opened; if discovery ever reports
// more than one, OpenUSBSimple fails immediately with TooMany.
func OpenUSBSimple(ctx *medium.USBContext, discoverer Discoverer, flags Flags) (*Link, error) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		targets, err := discoverer.Discover()
		if err != nil {
			return nil, err
		}
		switch len(targets) {
		case 0:
			time.Sleep(time.Second)
			continue
		case 1:
			return OpenUSB(ctx, targets[0], flags)
		default:
			return nil, newError(KindTooMany, "more than one candidate device found", nil)
		}
	}
	return nil, newError(KindNotFound, "no device found after polling", nil)
}

func roleFromFlags(flags Flags) medium.Role {
	if flags.has(Receiver) {
		return medium.RoleReceiver
	}
	return medium.RoleSender
}

// initProtocol runs the handshake for protocol over l's stream,
// installing the resulting codec state and, for an active Seven open,
// caching the peer's device information.
func (l *Link) initProtocol(protocol Protocol, flags Flags) error {
	active := !flags.has(Receiver)
	xlog.Tracef("init_protocol: protocol=%d active=%v", protocol, active)
	switch protocol {
	case ProtocolSeven:
		if err := seven.Initiate(l.stream, active); err != nil {
			xlog.Tracef("init_protocol: seven handshake failed: %v", err)
			return err
		}
		st := &sevenState{}
		l.state = st
		if active && !flags.has(NoCheck) {
			info, err := seven.Discover(l.stream)
			if err != nil {
				return err
			}
			st.deviceInfo = info
			if parsed, err := ParseDeviceInfo(info); err == nil {
				l.info = parsed
			}
		}
		return nil
	default:
		variant := protocolVariant(protocol)
		if err := casiolink.Initiate(l.stream, active); err != nil {
			return err
		}
		l.state = &casiolinkState{variant: variant}
		return nil
	}
}

func protocolVariant(protocol Protocol) casiolink.Variant {
	switch protocol {
	case ProtocolCAS40:
		return casiolink.VariantCAS40
	case ProtocolCAS50:
		return casiolink.VariantCAS50
	case ProtocolCAS100:
		return casiolink.VariantCAS100
	default:
		return casiolink.VariantAuto
	}
}
