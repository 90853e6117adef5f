package medium

import (
	"errors"
	"syscall"

	"github.com/daedaluz/cahute/cherr"
)

// classify maps an OS-level error observed on a medium operation onto the
// taxonomy per spec §4.1: disappearance maps to Gone, access errors to
// PermissionDenied, a missing device (ENOENT, ENXIO) to NotFound, and
// everything else to Unknown.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EIO):
		return cherr.New(cherr.KindGone, op, err)
	case errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM):
		return cherr.New(cherr.KindPermissionDenied, op, err)
	case errors.Is(err, syscall.ENOENT),
		errors.Is(err, syscall.ENXIO):
		return cherr.New(cherr.KindNotFound, op, err)
	default:
		return cherr.New(cherr.KindUnknown, op, err)
	}
}
