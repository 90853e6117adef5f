package seven

import (
	"github.com/daedaluz/cahute/cherr"
)

// Subtypes used during session setup, spec §4.4: CHECK/INIT drives the
// initial handshake, COMMAND 0x01 requests the device-information blob.
const (
	SubtypeInit     = 0x01
	SubtypeDiscover = 0x01
)

type link interface {
	reader
	writer
}

// Initiate performs the Seven session handshake: the initiator sends
// CHECK/INIT and waits for a basic ACK; the responder waits for it and
// answers with ACK.
func Initiate(c link, active bool) error {
	if active {
		if err := sendBasic(c, TypeCheck, SubtypeInit); err != nil {
			return err
		}
		return expectBasic(c, TypeACK)
	}
	p, err := Decode(c, 0)
	if err != nil {
		return err
	}
	if p.Type != TypeCheck || p.Subtype != SubtypeInit {
		return cherr.New(cherr.KindInvalid, "expected check/init", nil)
	}
	return sendBasic(c, TypeACK, 0)
}

// Discover exchanges a COMMAND 0x01 packet for an extended ACK carrying
// the peer's device-information blob (see device_info.go in the root
// package for its layout).
func Discover(c link) ([]byte, error) {
	if err := sendBasic(c, TypeCommand, SubtypeDiscover); err != nil {
		return nil, err
	}
	p, err := Decode(c, ByteTimeout)
	if err != nil {
		return nil, err
	}
	if p.Type != TypeACK {
		return nil, cherr.New(cherr.KindInvalid, "expected discover reply", nil)
	}
	return p.Data, nil
}

// AnswerDiscover replies to a discover request with the local device's
// information blob.
func AnswerDiscover(c link, info []byte) error {
	p, err := Decode(c, 0)
	if err != nil {
		return err
	}
	if p.Type != TypeCommand || p.Subtype != SubtypeDiscover {
		return cherr.New(cherr.KindInvalid, "expected discover command", nil)
	}
	raw, err := Encode(Packet{Type: TypeACK, Data: info})
	if err != nil {
		return err
	}
	return c.Write(raw)
}

// Terminate sends a TERM packet and waits for its ACK.
func Terminate(c link) error {
	if err := sendBasic(c, TypeTerm, 0); err != nil {
		return err
	}
	return expectBasic(c, TypeACK)
}

// AwaitTerminate waits for the peer's TERM packet and acknowledges it.
func AwaitTerminate(c link) error {
	p, err := Decode(c, 0)
	if err != nil {
		return err
	}
	if p.Type != TypeTerm {
		return cherr.New(cherr.KindInvalid, "expected terminate packet", nil)
	}
	return sendBasic(c, TypeACK, 0)
}

// RoleSwap exchanges a ROLESWAP packet with the peer's acknowledgement,
// after which sender and receiver reverse.
func RoleSwap(c link) error {
	if err := sendBasic(c, TypeRoleSwap, 0); err != nil {
		return err
	}
	return expectBasic(c, TypeACK)
}

// AwaitRoleSwap waits for the peer's ROLESWAP request and acknowledges.
func AwaitRoleSwap(c link) error {
	p, err := Decode(c, 0)
	if err != nil {
		return err
	}
	if p.Type != TypeRoleSwap {
		return cherr.New(cherr.KindInvalid, "expected role-swap packet", nil)
	}
	return sendBasic(c, TypeACK, 0)
}

func sendBasic(w writer, typ byte, subtype int) error {
	raw, err := Encode(Packet{Type: typ, Subtype: subtype})
	if err != nil {
		return err
	}
	return w.Write(raw)
}

func expectBasic(r reader, typ byte) error {
	p, err := Decode(r, ByteTimeout)
	if err != nil {
		return err
	}
	if p.Type != typ {
		return cherr.New(cherr.KindInvalid, "unexpected packet type", nil)
	}
	return nil
}
