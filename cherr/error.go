// Package cherr is the shared error taxonomy for every layer of cahute
// (medium, stream, codecs, link orchestrator). It is a separate package
// so that leaf packages (medium, stream, casiolink, seven, ohp, flash) can
// return a classified *Error without importing the root package, which
// itself depends on them.
package cherr

// Kind identifies one entry of the link's error taxonomy. It is the leaf
// of the causal chain visible to callers, even though an Error may still
// carry an underlying OS error for diagnostics via Unwrap.
type Kind int

const (
	KindUnimplemented Kind = iota
	KindUnknown
	KindOutOfMemory
	KindPermissionDenied
	KindBusy
	KindInterrupted
	KindDataSize
	KindTruncated
	KindInvalid
	KindIncompatible
	KindTerminated

	KindNotFound
	KindTooMany
	KindGone
	KindTimeoutStart
	KindTimeout
	KindCorrupt
	KindIrrecoverable

	KindNotOverwritten
)

var kindNames = map[Kind]string{
	KindUnimplemented:    "unimplemented",
	KindUnknown:          "unknown",
	KindOutOfMemory:      "out of memory",
	KindPermissionDenied: "permission denied",
	KindBusy:             "busy",
	KindInterrupted:      "interrupted",
	KindDataSize:         "data size",
	KindTruncated:        "truncated",
	KindInvalid:          "invalid",
	KindIncompatible:     "incompatible",
	KindTerminated:       "terminated",
	KindNotFound:         "not found",
	KindTooMany:          "too many",
	KindGone:             "gone",
	KindTimeoutStart:     "timeout waiting for first byte",
	KindTimeout:          "timeout",
	KindCorrupt:          "corrupt",
	KindIrrecoverable:    "irrecoverable",
	KindNotOverwritten:   "not overwritten",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown kind"
}

// Error is the single error value every fallible operation returns. There
// is no exception mechanism: all errors observable by a caller carry one
// Kind from the taxonomy, an optional human-readable note, and an optional
// wrapped cause for diagnostics.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.msg != "" {
		msg += ": " + e.msg
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, cahute.ErrGone) against the sentinels below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind && other.msg == "" && other.err == nil
}

// New builds a fresh *Error of the given kind, with an optional note and
// wrapped cause.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, err: cause}
}

// Sentinels usable with errors.Is for the bare taxonomy entries.
var (
	ErrUnimplemented    = &Error{Kind: KindUnimplemented}
	ErrUnknown          = &Error{Kind: KindUnknown}
	ErrOutOfMemory      = &Error{Kind: KindOutOfMemory}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrBusy             = &Error{Kind: KindBusy}
	ErrInterrupted      = &Error{Kind: KindInterrupted}
	ErrDataSize         = &Error{Kind: KindDataSize}
	ErrTruncated        = &Error{Kind: KindTruncated}
	ErrInvalid          = &Error{Kind: KindInvalid}
	ErrIncompatible     = &Error{Kind: KindIncompatible}
	ErrTerminated       = &Error{Kind: KindTerminated}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTooMany          = &Error{Kind: KindTooMany}
	ErrGone             = &Error{Kind: KindGone}
	ErrTimeoutStart     = &Error{Kind: KindTimeoutStart}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrCorrupt          = &Error{Kind: KindCorrupt}
	ErrIrrecoverable    = &Error{Kind: KindIrrecoverable}
	ErrNotOverwritten   = &Error{Kind: KindNotOverwritten}
)
