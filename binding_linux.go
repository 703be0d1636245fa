package serialport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// NativeBinding drives real serial hardware through termios. It is the
// default binding used when none is injected via WithBinding.
type NativeBinding struct{}

// NewNativeBinding creates a binding for real devices
func NewNativeBinding() *NativeBinding {
	return &NativeBinding{}
}

var nativeBinding = NewNativeBinding()

func defaultBinding() Binding {
	return nativeBinding
}

// Open opens and configures the device at path. With the lock option set
// the device is claimed exclusively via flock and TIOCEXCL, so a second
// open fails with ErrLockHeld.
func (b *NativeBinding) Open(path string, opts Options) (session Session, err error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, openError(path, err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	if opts.Lock {
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			if err == unix.EWOULDBLOCK {
				return nil, ErrLockHeld
			}
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}
		if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
			return nil, fmt.Errorf("failed to set exclusive mode on %s: %w", path, err)
		}
	}

	if err := configureTermios(fd, opts); err != nil {
		return nil, err
	}

	return &nativeSession{fd: fd}, nil
}

func openError(path string, err error) error {
	switch err {
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		return ErrDeviceNotFound
	case unix.EACCES, unix.EPERM:
		return ErrPermissionDenied
	case unix.EBUSY:
		return ErrLockHeld
	default:
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// configureTermios applies the given options to an open descriptor
func configureTermios(fd int, opts Options) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	// Raw mode: no input, output or line processing
	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// VMIN=0 with a bounded VTIME so binding reads always return within
	// the configured timeout; the port's read loop relies on that to
	// observe shutdown.
	tenths := opts.ReadTimeoutTenths
	if tenths <= 0 {
		tenths = 1
	}
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = uint8(tenths)

	baudRate, err := getBaudRate(opts.BaudRate)
	if err != nil {
		return err
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	switch opts.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	case 8, 0:
		termios.Cflag |= unix.CS8
	default:
		return ErrInvalidConfig
	}

	switch opts.StopBits {
	case 1, 0:
	case 2:
		termios.Cflag |= unix.CSTOPB
	default:
		return ErrInvalidConfig
	}

	switch opts.Parity {
	case ParityNone:
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark, ParitySpace:
		// CMSPAR is not universally available
		return ErrUnsupported
	default:
		return ErrInvalidConfig
	}

	if opts.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// nativeSession is an exclusive handle on an open device descriptor
type nativeSession struct {
	mu     sync.RWMutex
	fd     int
	closed bool
}

func (s *nativeSession) Read(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrPortClosed
	}
	n, err := unix.Read(s.fd, p)
	if n < 0 {
		n = 0
	}
	if err == unix.EINTR {
		return 0, nil
	}
	return n, err
}

func (s *nativeSession) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrPortClosed
	}
	n, err := unix.Write(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *nativeSession) Update(opts Options) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrPortClosed
	}
	return configureTermios(s.fd, opts)
}

func (s *nativeSession) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(s.fd, unix.TCFLSH, unix.TCIOFLUSH)
}

// Drain waits until all output written to the device has been transmitted
func (s *nativeSession) Drain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(s.fd, unix.TCSBRK, 1)
}

func (s *nativeSession) SetSignals(ls LineState) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrPortClosed
	}
	if ls.RTS != nil {
		if err := setModemBit(s.fd, unix.TIOCM_RTS, *ls.RTS); err != nil {
			return err
		}
	}
	if ls.DTR != nil {
		if err := setModemBit(s.fd, unix.TIOCM_DTR, *ls.DTR); err != nil {
			return err
		}
	}
	return nil
}

func (s *nativeSession) GetSignals() (ModemSignals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ModemSignals{}, ErrPortClosed
	}
	status, err := unix.IoctlGetInt(s.fd, unix.TIOCMGET)
	if err != nil {
		return ModemSignals{}, err
	}
	return ModemSignals{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}, nil
}

func (s *nativeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrPortClosed
	}
	s.closed = true
	return unix.Close(s.fd)
}

func setModemBit(fd, bit int, state bool) error {
	if state {
		return unix.IoctlSetInt(fd, unix.TIOCMBIS, bit)
	}
	return unix.IoctlSetInt(fd, unix.TIOCMBIC, bit)
}

var _ Binding = (*NativeBinding)(nil)
var _ Session = (*nativeSession)(nil)
