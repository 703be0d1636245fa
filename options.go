package serialport

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// Options holds the configuration for a serial port
type Options struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl

	// Lock requests an exclusive OS-level lock on the device while the
	// session is open. Another open against the same path fails with
	// ErrLockHeld.
	Lock bool

	// AutoOpen makes New open the port immediately on construction.
	AutoOpen bool

	// Binding selects the driver used for actual device I/O. Defaults to
	// the platform binding; tests inject a MockBinding here.
	Binding Binding

	// ReadBufferSize bounds the receive buffer between the background
	// read loop and the consumer. When the buffer is full the read loop
	// stops issuing reads until the consumer catches up.
	ReadBufferSize int

	// ReadChunkSize is the maximum number of bytes requested from the
	// binding per read loop iteration.
	ReadChunkSize int

	// ReadTimeoutTenths is the VTIME setting in tenths of seconds used by
	// the platform binding (0-255). It bounds how long a single binding
	// read may block with no data.
	ReadTimeoutTenths int
}

// Option is a functional option for configuring a serial port
type Option func(*Options) error

// DefaultOptions returns a configuration with sensible defaults
func DefaultOptions() Options {
	return Options{
		BaudRate:          115200,
		DataBits:          8,
		StopBits:          1,
		Parity:            ParityNone,
		FlowControl:       FlowControlNone,
		AutoOpen:          true,
		ReadBufferSize:    4096,
		ReadChunkSize:     1024,
		ReadTimeoutTenths: 2,
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(o *Options) error {
		if rate <= 0 {
			return ErrInvalidBaudRate
		}
		o.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(o *Options) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		o.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(o *Options) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		o.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(o *Options) error {
		o.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(o *Options) error {
		o.FlowControl = fc
		return nil
	}
}

// WithLock requests an exclusive lock on the device while open
func WithLock() Option {
	return func(o *Options) error {
		o.Lock = true
		return nil
	}
}

// WithAutoOpen controls whether New opens the port immediately
func WithAutoOpen(auto bool) Option {
	return func(o *Options) error {
		o.AutoOpen = auto
		return nil
	}
}

// WithBinding selects the binding implementation used for device I/O
func WithBinding(b Binding) Option {
	return func(o *Options) error {
		if b == nil {
			return ErrInvalidConfig
		}
		o.Binding = b
		return nil
	}
}

// WithReadBufferSize bounds the receive buffer used for consumer backpressure
func WithReadBufferSize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return ErrInvalidConfig
		}
		o.ReadBufferSize = size
		return nil
	}
}

// WithReadChunkSize sets the per-iteration read size of the read loop
func WithReadChunkSize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return ErrInvalidConfig
		}
		o.ReadChunkSize = size
		return nil
	}
}

// WithReadTimeout sets the binding read timeout in tenths of seconds (VTIME)
func WithReadTimeout(tenths int) Option {
	return func(o *Options) error {
		if tenths < 0 || tenths > 255 {
			return ErrInvalidConfig
		}
		o.ReadTimeoutTenths = tenths
		return nil
	}
}
