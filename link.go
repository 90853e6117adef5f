// Package cahute is a host-side communication library for CASIO
// graphing calculators: a link state machine, framed packet codecs for
// the CASIOLINK and Seven protocol families, a transport abstraction
// over serial and USB mediums, and the high-level file-transfer and
// screen-capture flows built on them.
package cahute

import (
	"strconv"

	"github.com/daedaluz/cahute/casiolink"
	"github.com/daedaluz/cahute/clock"
	"github.com/daedaluz/cahute/internal/xlog"
	"github.com/daedaluz/cahute/medium"
	"github.com/daedaluz/cahute/seven"
	"github.com/daedaluz/cahute/stream"
)

// scratchBufferSize is the protocol scratch buffer every link allocates
// up front, spec §4.6.
const scratchBufferSize = 512 * 1024

// Link is a single open connection to a calculator: a medium, the
// buffered stream over it, the currently-active codec state, and
// lifecycle bookkeeping. A Link is owned by exactly one goroutine at a
// time; it is not safe for concurrent use.
type Link struct {
	medium  medium.Medium
	stream  *stream.Buffer
	state   codecState
	scratch []byte
	flags   Flags
	info    *DeviceInfo
}

func newLink(m medium.Medium, flags Flags) *Link {
	return &Link{
		medium:  m,
		stream:  stream.New(m, scratchBufferSize, clock.Default),
		scratch: make([]byte, 0, scratchBufferSize),
		flags:   flags,
	}
}

// IsIrrecoverable reports whether a protocol fault has left the link's
// state unrecoverable; only Close is valid afterward.
func (l *Link) IsIrrecoverable() bool { return l.flags.has(Irrecoverable) }

// IsTerminated reports whether the protocol session has already ended
// cleanly.
func (l *Link) IsTerminated() bool { return l.flags.has(Terminated) }

// IsGone reports whether the medium itself has reported the device
// disappearing.
func (l *Link) IsGone() bool { return l.flags.has(Gone) }

func (l *Link) latchIrrecoverable() { l.flags |= Irrecoverable }
func (l *Link) latchGone()          { l.flags |= Gone }
func (l *Link) latchTerminated()    { l.flags |= Terminated }

// DeviceInfo returns the cached device-information blob discovered
// during a Seven session's handshake, or nil if the link has not run
// discovery (a CASIOLINK link, or a Seven link opened with NoCheck).
func (l *Link) DeviceInfo() *DeviceInfo { return l.info }

// requireSeven returns the active Seven codec state, or an Incompatible
// error if the link is not running the Seven protocol family.
func (l *Link) requireSeven() (*sevenState, error) {
	if l.state == nil {
		return nil, newError(KindUnimplemented, "control commands are unimplemented on a raw mass-storage link", nil)
	}
	st, ok := l.state.(*sevenState)
	if !ok {
		return nil, newError(KindIncompatible, "operation requires a Seven-protocol link", nil)
	}
	return st, nil
}

func (l *Link) requireCASIOLINK() (*casiolinkState, error) {
	st, ok := l.state.(*casiolinkState)
	if !ok {
		return nil, newError(KindIncompatible, "operation requires a CASIOLINK link", nil)
	}
	return st, nil
}

// Close tears the link down: runs protocol termination (unless the link
// is already Terminated, Gone, or Irrecoverable, or the caller opened
// it without CloseProtocol or with NoTerm), then releases the medium if CloseMedium
// was set at open.
func (l *Link) Close() error {
	xlog.Tracef("close: flags=%#x", l.flags)
	var termErr error
	if l.flags.has(CloseProtocol) && !l.flags.has(Terminated) && !l.flags.has(Gone) && !l.flags.has(Irrecoverable) && !l.flags.has(NoTerm) {
		termErr = l.terminateProtocol()
		if termErr != nil {
			xlog.Tracef("close: protocol termination failed: %v", termErr)
		}
	}
	var closeErr error
	if l.flags.has(CloseMedium) {
		closeErr = l.medium.Close()
	}
	if termErr != nil {
		return termErr
	}
	return closeErr
}

func (l *Link) terminateProtocol() error {
	switch st := l.state.(type) {
	case *sevenState:
		_ = st
		return seven.Terminate(l.stream)
	case *casiolinkState:
		return casiolink.Terminate(l.stream, st.variant)
	default:
		return nil
	}
}

// NegotiateSerial renegotiates the serial parameters of a Seven link:
// it asks the peer to reprogram to speed, and only reprograms the local
// medium once the peer has agreed. A local reprogram failure after the
// peer has already switched latches Irrecoverable, since the two
// endpoints are now running at different speeds with no way back.
func (l *Link) NegotiateSerial(speed int, params medium.SerialParams) error {
	if _, err := l.requireSeven(); err != nil {
		return err
	}
	setter, ok := l.medium.(medium.SerialSetter)
	if !ok {
		return newError(KindIncompatible, "negotiate_serial requires a serial medium", nil)
	}
	params.Speed = speed
	lens, body, err := seven.EncodeParams(speedParam(speed))
	if err != nil {
		return err
	}
	header := seven.CommandHeader{ParamLens: lens}
	if err := seven.SendCommand(l.stream, seven.SubtypeNegotiate, header, body); err != nil {
		return err
	}
	p, err := seven.Decode(l.stream, seven.ByteTimeout)
	if err != nil {
		return err
	}
	if p.Type != seven.TypeACK {
		return newError(KindInvalid, "peer refused serial renegotiation", nil)
	}
	if err := setter.SetSerialParams(params); err != nil {
		l.latchIrrecoverable()
		xlog.Tracef("negotiate_serial: local reprogram failed after peer agreed: %v", err)
		return newError(KindIrrecoverable, "local reprogram failed after peer agreed", err)
	}
	xlog.Tracef("negotiate_serial: now running at %d baud", speed)
	return nil
}

func speedParam(speed int) string {
	return strconv.Itoa(speed)
}
