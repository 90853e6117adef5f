// Package stream implements the link's buffered byte stream: an aligned
// read buffer sitting atop a medium, enforcing distinct "first-byte" and
// "next-byte" timeouts and satisfying partial reads out of already
// buffered bytes before touching the medium again.
package stream

import (
	"time"

	"github.com/daedaluz/cahute/cherr"
	"github.com/daedaluz/cahute/clock"
)

// Medium is the minimal surface the stream buffer needs from a transport.
// medium.Medium satisfies it structurally; stream does not import medium
// to avoid a cycle with the root package, which depends on both.
type Medium interface {
	Read(buf []byte, firstTimeout, nextTimeout time.Duration) (int, error)
	Write(buf []byte) error
}

// Buffer is the per-link read buffer described by the data model: a
// contiguous region of fixed capacity plus (start, size) cursors such
// that unread bytes occupy buf[start : start+size].
type Buffer struct {
	medium Medium
	clock  clock.Clock
	buf    []byte
	start  int
	size   int
}

// New allocates a Buffer of the given capacity atop medium. The buffer's
// lifetime is meant to equal its owning link's.
func New(medium Medium, capacity int, c clock.Clock) *Buffer {
	if c == nil {
		c = clock.Default
	}
	return &Buffer{medium: medium, clock: c, buf: make([]byte, capacity)}
}

// Buffered returns the number of unread bytes currently held in memory,
// without touching the medium.
func (b *Buffer) Buffered() int { return b.size }

// Read fills dst completely from buffered bytes and, if that is not
// enough, from the medium, or returns an error. firstTimeout governs the
// wait for the very first byte of this logical read (when the buffer
// starts out empty); nextTimeout governs every subsequent stall.
func (b *Buffer) Read(dst []byte, firstTimeout, nextTimeout time.Duration) error {
	need := len(dst)
	if need == 0 {
		return nil
	}

	if b.size >= need {
		copy(dst, b.buf[b.start:b.start+need])
		b.start += need
		b.size -= need
		return nil
	}

	filled := 0
	if b.size > 0 {
		copy(dst, b.buf[b.start:b.start+b.size])
		filled = b.size
		b.start, b.size = 0, 0
	}

	budget := firstTimeout
	if filled > 0 {
		budget = nextTimeout
	}
	haveByte := filled > 0

	for filled < need {
		scratch := b.buf[:cap(b.buf)]
		callStart := b.clock.Now()
		n, err := b.medium.Read(scratch, budget, budget)
		if err != nil {
			return err
		}
		if n == 0 {
			elapsed := b.clock.Now().Sub(callStart)
			if budget > 0 {
				budget -= elapsed
				if budget <= 0 {
					if haveByte {
						return cherr.New(cherr.KindTimeout, "no data before next-byte timeout", nil)
					}
					return cherr.New(cherr.KindTimeoutStart, "no data before first-byte timeout", nil)
				}
			}
			continue
		}

		take := n
		if take > need-filled {
			take = need - filled
		}
		copy(dst[filled:filled+take], scratch[:take])
		filled += take
		haveByte = true

		if n > take {
			surplus := n - take
			copy(b.buf[0:surplus], scratch[take:n])
			b.start = 0
			b.size = surplus
		}
		budget = nextTimeout
	}
	return nil
}

// Skip discards n bytes from the stream, reading them in chunks no larger
// than the buffer's capacity.
func (b *Buffer) Skip(n int, firstTimeout, nextTimeout time.Duration) error {
	if n <= 0 {
		return nil
	}
	chunkCap := cap(b.buf)
	discard := make([]byte, chunkCap)
	first := true
	for n > 0 {
		sz := n
		if sz > chunkCap {
			sz = chunkCap
		}
		ft := nextTimeout
		if first {
			ft = firstTimeout
		}
		if err := b.Read(discard[:sz], ft, nextTimeout); err != nil {
			return err
		}
		n -= sz
		first = false
	}
	return nil
}

// Write passes buf through to the medium unbuffered and invalidates any
// buffered bytes that would now be stale. For pure byte pipes (serial,
// USB bulk, UMS) invalidation is a no-op since reads and writes never
// overlap the same backing storage; it only matters for a random-access
// file medium, which this library never opens as a link transport.
func (b *Buffer) Write(buf []byte) error {
	if err := b.medium.Write(buf); err != nil {
		return err
	}
	return nil
}
