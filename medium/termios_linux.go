package medium

// Termios mirrors struct termios from <asm-generic/termbits.h> in full;
// Termios.apply programs the fields this package uses. Field layout matches the kernel ABI so it can be passed straight to
// TCGETS/TCSETS via an unsafe.Pointer, exactly as the teacher's port
// driver does.
type Termios struct {
	Iflag uint32
	Oflag uint32
	Cflag uint32
	Lflag uint32
	Line  byte
	Cc    [19]byte
}

const (
	ignpar = uint32(0000004)
	ixon   = uint32(0002000)
	ixoff  = uint32(0010000)

	opost = uint32(0000001)

	csize  = uint32(0000060)
	cs8    = uint32(0000060)
	cstopb = uint32(0000100)
	cread  = uint32(0000200)
	parenb = uint32(0000400)
	parodd = uint32(0001000)
	hupcl  = uint32(0002000)
	clocal = uint32(0004000)
	cbaud  = uint32(0010017)

	icanon = uint32(0000002)
	isig   = uint32(0000001)
	echo   = uint32(0000010)
	iexten = uint32(0100000)
)

var baudRates = map[int]uint32{
	300:    0000007,
	600:    0000010,
	1200:   0000011,
	2400:   0000013,
	4800:   0000014,
	9600:   0000015,
	19200:  0000016,
	38400:  0000017,
	57600:  0010001,
	115200: 0010002,
}

func baudConstant(speed int) (uint32, error) {
	if b, ok := baudRates[speed]; ok {
		return b, nil
	}
	return 0, errUnsupportedBaud
}

const vmin, vtime = 5, 6

// makeRaw clears the cooked-mode / echo / signal-generating bits so the
// link sees a transparent byte pipe, same intent as the teacher's
// Termios.MakeRaw.
func (t *Termios) makeRaw() {
	t.Iflag &^= ignpar | ixon | ixoff
	t.Oflag &^= opost
	t.Lflag &^= icanon | echo | isig | iexten
	t.Cflag &^= csize | parenb
	t.Cflag |= cs8
	t.Cc[vmin] = 1
	t.Cc[vtime] = 0
}

func (t *Termios) setSpeed(baud uint32) {
	t.Cflag &^= cbaud
	t.Cflag |= baud
}

func (t *Termios) apply(p SerialParams) error {
	t.makeRaw()
	baud, err := baudConstant(p.Speed)
	if err != nil {
		return err
	}
	t.setSpeed(baud)

	t.Cflag |= cread | clocal
	switch p.StopBits {
	case TwoStopBits:
		t.Cflag |= cstopb
	default:
		t.Cflag &^= cstopb
	}
	switch p.Parity {
	case ParityEven:
		t.Cflag |= parenb
		t.Cflag &^= parodd
	case ParityOdd:
		t.Cflag |= parenb | parodd
	default:
		t.Cflag &^= parenb
	}
	if p.XonXoff {
		t.Iflag |= ixon | ixoff
	} else {
		t.Iflag &^= (ixon | ixoff)
	}
	return nil
}
