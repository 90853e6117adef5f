package medium

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"

	"github.com/daedaluz/cahute/cherr"
)

var errUnsupportedBaud = cherr.New(cherr.KindIncompatible, "unsupported baud rate", nil)

var (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)

	tiocmget = uintptr(0x5415)
	tiocmbis = uintptr(0x5416)
	tiocmbic = uintptr(0x5417)

	tcxonc = uintptr(0x540A)
)

const (
	tiocmDTR = 0x002
	tiocmRTS = 0x004
)

// SerialMedium is a line discipline over a tty device, programmed via
// termios ioctls exactly as the teacher's Port does, generalized from a
// raw passthrough to the SerialParams vocabulary the link engine speaks.
type SerialMedium struct {
	fd     int
	params SerialParams
	closed bool
}

// OpenSerial opens path in raw, non-controlling mode and programs it with
// params. Fails with NotFound, PermissionDenied, or Unknown per §4.1.
func OpenSerial(path string, params SerialParams) (*SerialMedium, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, classify("open serial port", err)
	}
	m := &SerialMedium{fd: fd}
	if err := m.SetSerialParams(params); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	m.setModemLine(tiocmDTR, params.DTR)
	m.setModemLine(tiocmRTS, params.RTS)
	return m, nil
}

func (m *SerialMedium) mediumMarker() {}

func (m *SerialMedium) IsSerial() bool { return true }

func (m *SerialMedium) SerialParams() SerialParams { return m.params }

// SetSerialParams programs the line discipline, skipping the ioctl
// entirely when the requested parameters already match (testable
// property 8: programming the same parameters twice performs one
// configuration call, not two).
func (m *SerialMedium) SetSerialParams(p SerialParams) error {
	if p == m.params && m.params != (SerialParams{}) {
		return nil
	}
	attrs := &Termios{}
	if err := ioctl.Ioctl(uintptr(m.fd), tcgets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return classify("get termios", err)
	}
	if err := attrs.apply(p); err != nil {
		return err
	}
	if err := ioctl.Ioctl(uintptr(m.fd), tcsets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return classify("set termios", err)
	}
	m.params = p
	return nil
}

func (m *SerialMedium) setModemLine(bit int32, line Line) {
	switch line {
	case LineEnabled, LineHandshake:
		ioctl.Ioctl(uintptr(m.fd), tiocmbis, uintptr(unsafe.Pointer(&bit)))
	case LineDisabled:
		ioctl.Ioctl(uintptr(m.fd), tiocmbic, uintptr(unsafe.Pointer(&bit)))
	}
}

// Read waits up to firstTimeout for the port to become readable, then
// performs a single read. nextTimeout is honoured by the caller (the
// stream buffer), which re-invokes Read with its own remaining next-byte
// budget in the firstTimeout slot for subsequent bytes of a logical
// request — see stream.Buffer.Read.
func (m *SerialMedium) Read(buf []byte, firstTimeout, nextTimeout time.Duration) (int, error) {
	if m.closed {
		return 0, cherr.New(cherr.KindInvalid, "medium closed", nil)
	}
	if firstTimeout > 0 {
		// A zero timeout means "wait indefinitely" per the medium
		// contract; only a positive budget is handed to poll.
		if err := poll.WaitInput(m.fd, firstTimeout); err != nil {
			return 0, cherr.New(cherr.KindTimeoutStart, "serial read", err)
		}
	}
	n, err := syscall.Read(m.fd, buf)
	if err != nil {
		return 0, classify("serial read", err)
	}
	return n, nil
}

func (m *SerialMedium) Write(buf []byte) error {
	if m.closed {
		return cherr.New(cherr.KindInvalid, "medium closed", nil)
	}
	for len(buf) > 0 {
		n, err := syscall.Write(m.fd, buf)
		if err != nil {
			return classify("serial write", err)
		}
		buf = buf[n:]
	}
	return nil
}

func (m *SerialMedium) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return syscall.Close(m.fd)
}

// Flush issues TCXONC with argument 1 (TCOON), restarting output that
// XON/XOFF flow control had suspended. NegotiateSerial does not call it.
func (m *SerialMedium) Flush() error {
	return ioctl.Ioctl(uintptr(m.fd), tcxonc, 1)
}
