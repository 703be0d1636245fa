package serialport

// Binding is the pluggable driver interface the Port uses for all actual
// device I/O. Implementations exist for real hardware (NativeBinding) and
// for simulated devices (MockBinding); the Port state machine drives either
// one identically.
type Binding interface {
	// Open acquires an exclusive session against the device at path.
	// It fails atomically with ErrLockHeld if the path is already open
	// by another session.
	Open(path string, opts Options) (Session, error)

	// List enumerates currently available devices. No session required.
	List() ([]DeviceInfo, error)
}

// Session is an opaque handle representing one exclusive open instance of a
// device. All operations are only valid while the session is live; Close
// must be called exactly once.
type Session interface {
	// Read fills p with available data. It returns as soon as at least
	// one byte is available or the session closes; a (0, nil) result is
	// not an error and the caller is expected to retry. It never blocks
	// forever.
	Read(p []byte) (int, error)

	// Write transmits p. It may write fewer bytes than requested; the
	// caller is responsible for re-issuing the remainder.
	Write(p []byte) (int, error)

	// Update reconfigures the open session. Only a baud rate change is
	// guaranteed portable; other changes may fail with ErrUnsupported.
	Update(opts Options) error

	// Flush discards data buffered but not yet delivered, in both
	// directions. A Read blocked when Flush is called must return
	// promptly, empty or with whatever it had already consumed, rather
	// than wait for fresh data.
	Flush() error

	// Drain waits until all previously submitted writes have been
	// physically transmitted.
	Drain() error

	// SetSignals asserts or clears modem control lines. Nil fields are
	// left untouched.
	SetSignals(ls LineState) error

	// GetSignals reports the current modem line status.
	GetSignals() (ModemSignals, error)

	// Close releases the session and the device lock.
	Close() error
}

// DeviceInfo describes an enumerated device
type DeviceInfo struct {
	Path         string
	Name         string
	Description  string
	Manufacturer string
	Product      string
	SerialNumber string
	VendorID     string
	ProductID    string
	BusNumber    string
	DeviceNumber string
}

// LineState selects modem control lines to change. Nil fields are not
// touched, mirroring how initial RTS/DTR configuration is expressed.
type LineState struct {
	RTS *bool
	DTR *bool
}

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// Bool is a helper for building LineState values
func Bool(v bool) *bool { return &v }
