package medium

import (
	"fmt"
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

var (
	tiocsptlck = ioctl.IOW('T', 0x31, unsafe.Sizeof(int32(0)))
	tiocgptn   = ioctl.IOR('T', 0x30, unsafe.Sizeof(uint32(0)))
)

func unlockPT(fd int) error {
	var unlock int32
	if err := ioctl.Ioctl(uintptr(fd), tiocsptlck, uintptr(unsafe.Pointer(&unlock))); err != nil {
		return classify("unlock pty", err)
	}
	return nil
}

func ptsName(fd int) (string, error) {
	var n uint32
	if err := ioctl.Ioctl(uintptr(fd), tiocgptn, uintptr(unsafe.Pointer(&n))); err != nil {
		return "", classify("get pty number", err)
	}
	return fmt.Sprintf("/dev/pts/%d", n), nil
}

// OpenLoopbackPair opens a pseudoterminal pair and wraps both ends as
// SerialMedium values, giving tests a real kernel byte pipe to drive the
// handshake and data-phase state machines against without a physical
// calculator attached. Adapted from the teacher's OpenPTY: the master is
// returned as the "host" side and the slave as the simulated peer.
func OpenLoopbackPair(params SerialParams) (host, peer *SerialMedium, err error) {
	masterFd, err := syscall.Open("/dev/ptmx", syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, nil, classify("open ptmx", err)
	}
	master := &SerialMedium{fd: masterFd}

	if err := unlockPT(masterFd); err != nil {
		master.Close()
		return nil, nil, err
	}
	slavePath, err := ptsName(masterFd)
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	slaveHandle, err := syscall.Open(slavePath, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		master.Close()
		return nil, nil, classify("open pty slave", err)
	}
	peer = &SerialMedium{fd: slaveHandle}

	if err := master.SetSerialParams(params); err != nil {
		master.Close()
		peer.Close()
		return nil, nil, err
	}
	if err := peer.SetSerialParams(params); err != nil {
		master.Close()
		peer.Close()
		return nil, nil, err
	}
	return master, peer, nil
}
