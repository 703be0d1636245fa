package serialport

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockDeviceConfig configures a simulated device
type MockDeviceConfig struct {
	// Echo loops every written byte back into the receive buffer,
	// simulating a device that mirrors its input.
	Echo bool

	// ReadyBytes are seeded into the receive buffer on every open,
	// simulating a device that announces readiness.
	ReadyBytes []byte

	// ReadDelay is an artificial latency applied to every read, for
	// exercising timing-sensitive consumers.
	ReadDelay time.Duration
}

// MockBinding is a Binding backed by an explicit registry of simulated
// devices. Each instance owns its registry; nothing is shared between
// instances, so test harnesses create and destroy one per test.
//
// Devices must be registered with CreateDevice before they can be opened,
// and survive session close: a device can be opened and closed repeatedly.
// Unread receive data is discarded on close and ReadyBytes are re-seeded
// fresh on every open.
type MockBinding struct {
	mu      sync.Mutex
	devices map[string]*mockDevice
}

// NewMockBinding creates an empty device registry
func NewMockBinding() *MockBinding {
	return &MockBinding{devices: make(map[string]*mockDevice)}
}

type mockDevice struct {
	mu   sync.Mutex
	cond *sync.Cond

	path string
	cfg  MockDeviceConfig

	open bool
	rx   []byte

	// flushes counts Flush calls; a blocked Read started under an older
	// count returns empty instead of popping bytes.
	flushes uint64

	// fault injection
	readErr  error
	writeErr error

	lastOpts Options
}

func newMockDevice(path string, cfg MockDeviceConfig) *mockDevice {
	d := &mockDevice{path: path, cfg: cfg}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// CreateDevice registers a simulated device at path
func (b *MockBinding) CreateDevice(path string, cfg MockDeviceConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.devices[path]; ok {
		return ErrDeviceExists
	}
	b.devices[path] = newMockDevice(path, cfg)
	return nil
}

// RemoveDevice destroys a simulated device. An open session against the
// device observes it as closed.
func (b *MockBinding) RemoveDevice(path string) error {
	b.mu.Lock()
	dev, ok := b.devices[path]
	if !ok {
		b.mu.Unlock()
		return ErrDeviceNotFound
	}
	delete(b.devices, path)
	b.mu.Unlock()

	dev.mu.Lock()
	dev.open = false
	dev.rx = nil
	dev.cond.Broadcast()
	dev.mu.Unlock()
	return nil
}

// PushBytes appends data to a device's receive buffer, simulating the
// device sending data to the host.
func (b *MockBinding) PushBytes(path string, data []byte) error {
	dev, err := b.device(path)
	if err != nil {
		return err
	}
	dev.mu.Lock()
	dev.rx = append(dev.rx, data...)
	dev.cond.Broadcast()
	dev.mu.Unlock()
	return nil
}

// SetReadError makes every subsequent read on the device fail with err,
// simulating a fatal device failure such as a disconnect. A nil err clears
// the fault.
func (b *MockBinding) SetReadError(path string, err error) error {
	dev, derr := b.device(path)
	if derr != nil {
		return derr
	}
	dev.mu.Lock()
	dev.readErr = err
	dev.cond.Broadcast()
	dev.mu.Unlock()
	return nil
}

// SetWriteError makes every subsequent write on the device fail with err.
// A nil err clears the fault.
func (b *MockBinding) SetWriteError(path string, err error) error {
	dev, derr := b.device(path)
	if derr != nil {
		return derr
	}
	dev.mu.Lock()
	dev.writeErr = err
	dev.mu.Unlock()
	return nil
}

// LastOptions reports the options most recently applied to the device by
// Open or Update.
func (b *MockBinding) LastOptions(path string) (Options, error) {
	dev, err := b.device(path)
	if err != nil {
		return Options{}, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.lastOpts, nil
}

func (b *MockBinding) device(path string) (*mockDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.devices[path]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev, nil
}

// Open acquires an exclusive session against a registered device. It fails
// with ErrLockHeld if the device is already open and re-seeds the receive
// buffer with the configured ReadyBytes.
func (b *MockBinding) Open(path string, opts Options) (Session, error) {
	dev, err := b.device(path)
	if err != nil {
		return nil, err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.open {
		return nil, ErrLockHeld
	}
	if opts.BaudRate <= 0 {
		return nil, ErrInvalidBaudRate
	}
	dev.open = true
	dev.lastOpts = opts
	dev.rx = append([]byte(nil), dev.cfg.ReadyBytes...)
	if len(dev.rx) > 0 {
		dev.cond.Broadcast()
	}
	return &mockSession{dev: dev}, nil
}

// List enumerates the registered devices in path order
func (b *MockBinding) List() ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	paths := make([]string, 0, len(b.devices))
	for path := range b.devices {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	infos := make([]DeviceInfo, 0, len(paths))
	for i, path := range paths {
		infos = append(infos, DeviceInfo{
			Path:         path,
			Name:         path,
			Description:  "Mock Serial Port",
			Manufacturer: "serialport",
			Product:      "Mock Device",
			SerialNumber: fmt.Sprintf("MOCK%04d", i),
		})
	}
	return infos, nil
}

type mockSession struct {
	dev    *mockDevice
	closed bool
	rts    bool
	dtr    bool
}

// Read pops up to len(p) bytes from the receive buffer in FIFO order. It
// blocks until data is available, a fault fires, or the session closes.
// A Flush issued while the read is blocked interrupts it: the read returns
// (0, nil) without consuming anything, like a native read timing out.
func (s *mockSession) Read(p []byte) (int, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	flushes := s.dev.flushes
	for {
		if s.closed || !s.dev.open {
			return 0, ErrPortClosed
		}
		if s.dev.readErr != nil {
			return 0, s.dev.readErr
		}
		if s.dev.flushes != flushes {
			return 0, nil
		}
		if len(s.dev.rx) > 0 {
			break
		}
		s.dev.cond.Wait()
	}

	if s.dev.cfg.ReadDelay > 0 {
		delay := s.dev.cfg.ReadDelay
		s.dev.mu.Unlock()
		time.Sleep(delay)
		s.dev.mu.Lock()
		if s.closed || !s.dev.open {
			return 0, ErrPortClosed
		}
		if s.dev.flushes != flushes {
			return 0, nil
		}
	}

	n := copy(p, s.dev.rx)
	s.dev.rx = s.dev.rx[n:]
	return n, nil
}

// Write accepts p in full. With echo enabled the bytes are appended to the
// receive buffer, simulating read-after-write loopback.
func (s *mockSession) Write(p []byte) (int, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	if s.closed || !s.dev.open {
		return 0, ErrPortClosed
	}
	if s.dev.writeErr != nil {
		return 0, s.dev.writeErr
	}
	if s.dev.cfg.Echo {
		s.dev.rx = append(s.dev.rx, p...)
		s.dev.cond.Broadcast()
	}
	return len(p), nil
}

func (s *mockSession) Update(opts Options) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed || !s.dev.open {
		return ErrPortClosed
	}
	if opts.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	s.dev.lastOpts = opts
	return nil
}

// Flush empties the receive buffer and interrupts a blocked Read
func (s *mockSession) Flush() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed || !s.dev.open {
		return ErrPortClosed
	}
	s.dev.rx = nil
	s.dev.flushes++
	s.dev.cond.Broadcast()
	return nil
}

func (s *mockSession) Drain() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed || !s.dev.open {
		return ErrPortClosed
	}
	return nil
}

func (s *mockSession) SetSignals(ls LineState) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed || !s.dev.open {
		return ErrPortClosed
	}
	if ls.RTS != nil {
		s.rts = *ls.RTS
	}
	if ls.DTR != nil {
		s.dtr = *ls.DTR
	}
	return nil
}

func (s *mockSession) GetSignals() (ModemSignals, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed || !s.dev.open {
		return ModemSignals{}, ErrPortClosed
	}
	// The simulated peer mirrors our outputs back as its inputs.
	return ModemSignals{
		CTS: s.rts,
		DSR: s.dtr,
		RTS: s.rts,
		DTR: s.dtr,
	}, nil
}

// Close releases the device. Residual unread bytes are discarded; a later
// open starts from a fresh ReadyBytes seed.
func (s *mockSession) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrPortClosed
	}
	s.closed = true
	s.dev.open = false
	s.dev.rx = nil
	s.dev.cond.Broadcast()
	return nil
}

var _ Binding = (*MockBinding)(nil)
var _ Session = (*mockSession)(nil)
