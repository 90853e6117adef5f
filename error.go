// Package cahute implements a host-side multi-protocol link engine for
// CASIO graphing calculators: CASIOLINK and Protocol 7.00 framed packet
// codecs over serial, USB bulk, and USB Mass-Storage transports.
package cahute

import "github.com/daedaluz/cahute/cherr"

// Error and Kind are re-exported from cherr so callers never need to
// import the internal error-taxonomy package directly.
type (
	Error = cherr.Error
	Kind  = cherr.Kind
)

const (
	KindUnimplemented    = cherr.KindUnimplemented
	KindUnknown          = cherr.KindUnknown
	KindOutOfMemory      = cherr.KindOutOfMemory
	KindPermissionDenied = cherr.KindPermissionDenied
	KindBusy             = cherr.KindBusy
	KindInterrupted      = cherr.KindInterrupted
	KindDataSize         = cherr.KindDataSize
	KindTruncated        = cherr.KindTruncated
	KindInvalid          = cherr.KindInvalid
	KindIncompatible     = cherr.KindIncompatible
	KindTerminated       = cherr.KindTerminated
	KindNotFound         = cherr.KindNotFound
	KindTooMany          = cherr.KindTooMany
	KindGone             = cherr.KindGone
	KindTimeoutStart     = cherr.KindTimeoutStart
	KindTimeout          = cherr.KindTimeout
	KindCorrupt          = cherr.KindCorrupt
	KindIrrecoverable    = cherr.KindIrrecoverable
	KindNotOverwritten   = cherr.KindNotOverwritten
)

var (
	ErrUnimplemented    = cherr.ErrUnimplemented
	ErrUnknown          = cherr.ErrUnknown
	ErrOutOfMemory      = cherr.ErrOutOfMemory
	ErrPermissionDenied = cherr.ErrPermissionDenied
	ErrBusy             = cherr.ErrBusy
	ErrInterrupted      = cherr.ErrInterrupted
	ErrDataSize         = cherr.ErrDataSize
	ErrTruncated        = cherr.ErrTruncated
	ErrInvalid          = cherr.ErrInvalid
	ErrIncompatible     = cherr.ErrIncompatible
	ErrTerminated       = cherr.ErrTerminated
	ErrNotFound         = cherr.ErrNotFound
	ErrTooMany          = cherr.ErrTooMany
	ErrGone             = cherr.ErrGone
	ErrTimeoutStart     = cherr.ErrTimeoutStart
	ErrTimeout          = cherr.ErrTimeout
	ErrCorrupt          = cherr.ErrCorrupt
	ErrIrrecoverable    = cherr.ErrIrrecoverable
	ErrNotOverwritten   = cherr.ErrNotOverwritten
)

func newError(kind Kind, msg string, cause error) *Error {
	return cherr.New(kind, msg, cause)
}
