package cahute

// Flags is a bitmask of per-link lifecycle and negotiation flags, spec §3.
type Flags uint32

const (
	// CloseMedium requests Close to also close the underlying medium,
	// rather than leaving it open for the caller to reuse.
	CloseMedium Flags = 1 << iota
	// CloseProtocol requests Close to run protocol termination before
	// releasing the medium.
	CloseProtocol
	// TerminateRequested marks a caller-initiated termination in flight.
	// No operation in this package sets or reads it.
	TerminateRequested
	// Terminated marks a protocol session that has already ended; Close
	// skips termination when it is set. No operation in this package
	// sets it.
	Terminated
	// Receiver marks a link opened in passive/responder role.
	Receiver
	// Irrecoverable latches once a fault leaves the two peers unable to
	// agree on protocol state; only Close is valid afterward.
	Irrecoverable
	// Gone marks a link whose device has disappeared; Close skips
	// termination when it is set. No operation in this package sets it.
	Gone

	// NoCheck skips the device-information discovery exchange that an
	// active Seven open otherwise runs after the handshake.
	NoCheck
	// NoDisc is accepted in a Flags value but no open function reads it.
	NoDisc
	// NoTerm skips protocol termination on Close even if CloseProtocol
	// is set.
	NoTerm
	// OHP selects the Seven-OHP screen-streaming sub-protocol instead
	// of ordinary Seven on a USB open.
	OHP
	// DisableShift forces off Seven's optional packet-shifting
	// pipelining, even on a transport that would otherwise qualify.
	DisableShift
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }
