package medium

import "github.com/google/gousb"

// USBContext wraps a gousb.Context, the libusb session every USB medium
// opens against. Callers create exactly one per process and pass it to
// every USB open call; closing it invalidates every medium opened from
// it.
type USBContext struct {
	raw *gousb.Context
}

// NewUSBContext opens a new libusb session.
func NewUSBContext() *USBContext {
	return &USBContext{raw: gousb.NewContext()}
}

// Raw returns the underlying gousb.Context, for callers (the root
// package's open functions) that need to pass it on to OpenUSBBulk or
// OpenUSBMassStorage without this package importing them back.
func (c *USBContext) Raw() *gousb.Context { return c.raw }

// Close releases the libusb session.
func (c *USBContext) Close() error { return c.raw.Close() }
