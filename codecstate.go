package cahute

import "github.com/daedaluz/cahute/casiolink"

// codecState is the closed set of protocol states a Link can hold: at
// most one of casiolinkState, sevenState, or ohpState is alive at a
// time. The unexported marker method closes the interface to this
// package's three concrete types, the same role a tagged union's
// discriminant plays in the original.
type codecState interface {
	codecStateMarker()
}

type casiolinkState struct {
	variant casiolink.Variant
}

func (*casiolinkState) codecStateMarker() {}

type sevenState struct {
	deviceInfo []byte
}

func (*sevenState) codecStateMarker() {}

type ohpState struct{}

func (*ohpState) codecStateMarker() {}
