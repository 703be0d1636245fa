package serialport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"
)

const testPath = "/mock/tty0"

// newTestPort creates a mock binding with one device and a port against it.
// The port is not opened.
func newTestPort(t *testing.T, cfg MockDeviceConfig, opts ...Option) (*Port, *MockBinding) {
	t.Helper()

	binding := NewMockBinding()
	if err := binding.CreateDevice(testPath, cfg); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	opts = append([]Option{WithBinding(binding), WithAutoOpen(false)}, opts...)
	port, err := New(testPath, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return port, binding
}

// waitForEvent consumes events until one of the wanted kind arrives
func waitForEvent(t *testing.T, port *Port, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-port.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %v event", kind)
		}
	}
}

// countEvents drains the event channel for a settle period and counts
// events of the given kind
func countEvents(port *Port, kind EventKind, settle time.Duration) int {
	count := 0
	deadline := time.After(settle)
	for {
		select {
		case ev := <-port.Events():
			if ev.Kind == kind {
				count++
			}
		case <-deadline:
			return count
		}
	}
}

// readFull reads from the port until buf is full or the deadline expires
func readFull(t *testing.T, port *Port, n int) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make([]byte, 0, n)
	buf := make([]byte, 512)
	for len(out) < n {
		m, err := port.ReadContext(ctx, buf)
		if err != nil {
			t.Fatalf("Read failed after %d/%d bytes: %v", len(out), n, err)
		}
		out = append(out, buf[:m]...)
	}
	return out
}

func TestNewInvalidOption(t *testing.T) {
	_, err := New(testPath, WithBaudRate(-1))
	if !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}
}

func TestOpenNonexistentDevice(t *testing.T) {
	binding := NewMockBinding()
	port, err := New("/mock/nope", WithBinding(binding), WithAutoOpen(false))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := port.Open(); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if port.State() != StateClosed {
		t.Errorf("Expected state closed after failed open, got %v", port.State())
	}
	if got := countEvents(port, EventOpen, 50*time.Millisecond); got != 0 {
		t.Errorf("Expected no open event after failed open, got %d", got)
	}
}

func TestAutoOpenFailure(t *testing.T) {
	binding := NewMockBinding()
	_, err := New("/mock/nope", WithBinding(binding))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound from auto-open, got %v", err)
	}
}

func TestAutoOpen(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice(testPath, MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	port, err := New(testPath, WithBinding(binding))
	if err != nil {
		t.Fatalf("New with auto-open failed: %v", err)
	}
	defer port.Close()

	if !port.IsOpen() {
		t.Error("Expected port to be open after New with auto-open")
	}
	waitForEvent(t, port, EventOpen)
}

func TestOpenCloseCycle(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})

	if port.IsOpen() {
		t.Error("New port should not be open")
	}

	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitForEvent(t, port, EventOpen)
	if !port.IsOpen() {
		t.Error("Expected IsOpen true between open and close")
	}

	// A second open must be rejected by the state guard while the first
	// cycle proceeds unaffected.
	if err := port.Open(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("Expected ErrAlreadyOpen, got %v", err)
	}
	if !port.IsOpen() {
		t.Error("Rejected open must not disturb the open port")
	}

	if err := port.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if port.IsOpen() {
		t.Error("Expected IsOpen false after close")
	}
	if got := countEvents(port, EventClose, 100*time.Millisecond); got != 1 {
		t.Errorf("Expected exactly 1 close event, got %d", got)
	}

	if err := port.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen on double close, got %v", err)
	}
}

func TestLifecycleGuards(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})

	if err := port.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Close on closed port: expected ErrNotOpen, got %v", err)
	}
	if err := port.Flush(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Flush on closed port: expected ErrNotOpen, got %v", err)
	}
	if err := port.Drain(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Drain on closed port: expected ErrNotOpen, got %v", err)
	}
	if err := port.Update(WithBaudRate(9600)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Update on closed port: expected ErrNotOpen, got %v", err)
	}
	if _, err := port.Write([]byte("x")); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write on closed port: expected ErrPortClosed, got %v", err)
	}
	if _, err := port.GetSignals(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("GetSignals on closed port: expected ErrNotOpen, got %v", err)
	}
}

func TestRepeatedCycles(t *testing.T) {
	ready := []byte("READY\r\n")
	port, _ := newTestPort(t, MockDeviceConfig{ReadyBytes: ready})

	for cycle := 0; cycle < 3; cycle++ {
		if err := port.Open(); err != nil {
			t.Fatalf("Cycle %d: Open failed: %v", cycle, err)
		}
		waitForEvent(t, port, EventOpen)

		got := readFull(t, port, len(ready))
		if !bytes.Equal(got, ready) {
			t.Errorf("Cycle %d: expected ready bytes %q, got %q", cycle, ready, got)
		}

		if err := port.Close(); err != nil {
			t.Fatalf("Cycle %d: Close failed: %v", cycle, err)
		}
		if got := countEvents(port, EventClose, 100*time.Millisecond); got != 1 {
			t.Errorf("Cycle %d: expected exactly 1 close event, got %d", cycle, got)
		}
	}
}

// TestEchoRoundTrip verifies ordered, lossless delivery of the ready marker
// followed by echoed data, across many small chunks and under backpressure.
func TestEchoRoundTrip(t *testing.T) {
	ready := []byte("OK\r\n")
	payload := make([]byte, 2048)
	rng := rand.New(rand.NewSource(42))
	rng.Read(payload)

	port, _ := newTestPort(t, MockDeviceConfig{Echo: true, ReadyBytes: ready},
		WithReadChunkSize(64),
		WithReadBufferSize(128),
	)
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	done := make(chan error, 1)
	go func() {
		_, err := port.Write(payload)
		done <- err
	}()

	want := append(append([]byte(nil), ready...), payload...)
	got := readFull(t, port, len(want))
	if !bytes.Equal(got, want) {
		t.Errorf("Round trip corrupted: got %d bytes, want %d; first mismatch at %d",
			len(got), len(want), firstMismatch(got, want))
	}

	if err := <-done; err != nil {
		t.Errorf("Write failed: %v", err)
	}
}

func firstMismatch(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func TestWriteOrdering(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{Echo: true})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	var wg sync.WaitGroup
	chunks := [][]byte{[]byte("one."), []byte("two."), []byte("three.")}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	// Writes submitted in order from a single goroutine must reach the
	// device in that order even though completion is asynchronous.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, c := range chunks {
			if _, err := port.Write(c); err != nil {
				t.Errorf("Write failed: %v", err)
				return
			}
		}
	}()

	got := readFull(t, port, total)
	wg.Wait()

	want := []byte("one.two.three.")
	if !bytes.Equal(got, want) {
		t.Errorf("Expected echo %q, got %q", want, got)
	}
}

func TestWriteThenClose(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitForEvent(t, port, EventOpen)

	writeErr := make(chan error, 1)
	go func() {
		_, err := port.Write(bytes.Repeat([]byte("x"), 4096))
		writeErr <- err
	}()

	if err := port.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The racing write either settled successfully before close or was
	// failed fast; it is never silently dropped.
	select {
	case err := <-writeErr:
		if err != nil && !errors.Is(err, ErrPortClosed) {
			t.Errorf("Expected nil or ErrPortClosed from racing write, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Racing write never settled")
	}

	if got := countEvents(port, EventClose, 100*time.Millisecond); got != 1 {
		t.Errorf("Expected exactly 1 close event, got %d", got)
	}
}

func TestFlushDiscardsBufferedData(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	if err := binding.PushBytes(testPath, []byte("stale data")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	// Wait until the read loop has picked the data up.
	waitForEvent(t, port, EventReadable)

	if err := port.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// No pre-flush data may surface: an immediate read finds nothing.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	buf := make([]byte, 64)
	if n, err := port.ReadContext(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected read timeout after flush, got n=%d err=%v", n, err)
	}
	if got := countEvents(port, EventReadable, 100*time.Millisecond); got != 0 {
		t.Errorf("Expected no readable event for flushed data, got %d", got)
	}

	// Fresh data after the flush flows normally.
	if err := binding.PushBytes(testPath, []byte("fresh")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	got := readFull(t, port, 5)
	if !bytes.Equal(got, []byte("fresh")) {
		t.Errorf("Expected %q after flush, got %q", "fresh", got)
	}
}

func TestUpdateBaudRate(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{Echo: true})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	if err := port.Update(WithBaudRate(9600)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	opts, err := binding.LastOptions(testPath)
	if err != nil {
		t.Fatalf("LastOptions failed: %v", err)
	}
	if opts.BaudRate != 9600 {
		t.Errorf("Expected baud rate 9600 after update, got %d", opts.BaudRate)
	}

	// A failed update leaves the port open and functional.
	if err := port.Update(WithBaudRate(-5)); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}
	if !port.IsOpen() {
		t.Error("Failed update must not change port state")
	}
	if _, err := port.Write([]byte("ping")); err != nil {
		t.Errorf("Write after failed update: %v", err)
	}
	got := readFull(t, port, 4)
	if !bytes.Equal(got, []byte("ping")) {
		t.Errorf("Expected echo %q, got %q", "ping", got)
	}
}

func TestFatalReadError(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitForEvent(t, port, EventOpen)

	if err := binding.SetReadError(testPath, io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SetReadError failed: %v", err)
	}

	// The fatal error skips Closing: the port drops straight to Closed,
	// reporting the error and then the cycle's single close.
	ev := waitForEvent(t, port, EventError)
	if !errors.Is(ev.Err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF in error event, got %v", ev.Err)
	}
	waitForEvent(t, port, EventClose)

	if port.State() != StateClosed {
		t.Errorf("Expected state closed after fatal error, got %v", port.State())
	}
	if _, err := port.Write([]byte("x")); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed after fatal error, got %v", err)
	}
	if err := port.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen closing a fatally closed port, got %v", err)
	}
	if got := countEvents(port, EventClose, 100*time.Millisecond); got != 0 {
		t.Errorf("Expected no further close events, got %d", got)
	}

	// The same port can start a fresh cycle after the fault clears.
	if err := binding.SetReadError(testPath, nil); err != nil {
		t.Fatalf("SetReadError failed: %v", err)
	}
	if err := port.Open(); err != nil {
		t.Fatalf("Reopen after fatal error failed: %v", err)
	}
	if err := port.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestBackpressureLossless(t *testing.T) {
	payload := make([]byte, 8192)
	rng := rand.New(rand.NewSource(7))
	rng.Read(payload)

	port, binding := newTestPort(t, MockDeviceConfig{},
		WithReadChunkSize(16),
		WithReadBufferSize(32),
	)
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	if err := binding.PushBytes(testPath, payload); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}

	// Consume slowly in tiny reads; the read loop must pause instead of
	// dropping or reordering anything.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got := make([]byte, 0, len(payload))
	buf := make([]byte, 7)
	for len(got) < len(payload) {
		n, err := port.ReadContext(ctx, buf)
		if err != nil {
			t.Fatalf("Read failed after %d bytes: %v", len(got), err)
		}
		got = append(got, buf[:n]...)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("Payload corrupted under backpressure; first mismatch at %d",
			firstMismatch(got, payload))
	}
}

func TestReadDrainsBufferAfterClose(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := binding.PushBytes(testPath, []byte("hello")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	waitForEvent(t, port, EventReadable)

	if err := port.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Data already delivered to the receive buffer survives close and
	// can still be drained; after that reads fail.
	got := readFull(t, port, 5)
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Expected buffered %q after close, got %q", "hello", got)
	}
	if _, err := port.Read(make([]byte, 8)); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed after draining, got %v", err)
	}
}

func TestWriteContextCancellation(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := port.WriteContext(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	buf := make([]byte, 8)
	if _, err := port.ReadContext(ctx, buf); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSignals(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	if err := port.SetSignals(LineState{RTS: Bool(true), DTR: Bool(true)}); err != nil {
		t.Fatalf("SetSignals failed: %v", err)
	}
	signals, err := port.GetSignals()
	if err != nil {
		t.Fatalf("GetSignals failed: %v", err)
	}
	if !signals.RTS || !signals.DTR {
		t.Errorf("Expected RTS and DTR asserted, got %+v", signals)
	}

	if err := port.SetSignals(LineState{RTS: Bool(false)}); err != nil {
		t.Fatalf("SetSignals failed: %v", err)
	}
	signals, err = port.GetSignals()
	if err != nil {
		t.Fatalf("GetSignals failed: %v", err)
	}
	if signals.RTS {
		t.Error("Expected RTS deasserted")
	}
	if !signals.DTR {
		t.Error("Expected DTR untouched by partial SetSignals")
	}
}

func TestExclusiveOpenAcrossPorts(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice(testPath, MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	first, err := New(testPath, WithBinding(binding))
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}

	if _, err := New(testPath, WithBinding(binding)); !errors.Is(err, ErrLockHeld) {
		t.Errorf("Expected ErrLockHeld for second port, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := New(testPath, WithBinding(binding))
	if err != nil {
		t.Fatalf("Open after release failed: %v", err)
	}
	second.Close()
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpening, "opening"},
		{StateOpen, "open"},
		{StateClosing, "closing"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}

// gatedBinding holds Open until released, so tests can observe the
// Opening state deterministically.
type gatedBinding struct {
	inner   Binding
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBinding) Open(path string, opts Options) (Session, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.Open(path, opts)
}

func (g *gatedBinding) List() ([]DeviceInfo, error) { return g.inner.List() }

func TestOpenWhileOpening(t *testing.T) {
	mock := NewMockBinding()
	if err := mock.CreateDevice(testPath, MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	gated := &gatedBinding{
		inner:   mock,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	port, err := New(testPath, WithBinding(gated), WithAutoOpen(false))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	firstOpen := make(chan error, 1)
	go func() { firstOpen <- port.Open() }()
	<-gated.entered

	if port.State() != StateOpening {
		t.Errorf("Expected state opening, got %v", port.State())
	}
	if err := port.Open(); !errors.Is(err, ErrAlreadyOpening) {
		t.Errorf("Expected ErrAlreadyOpening, got %v", err)
	}

	close(gated.release)
	if err := <-firstOpen; err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	waitForEvent(t, port, EventOpen)
	port.Close()
}

func TestOptionsConcurrentWithUpdate(t *testing.T) {
	port, _ := newTestPort(t, MockDeviceConfig{})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			if err := port.Update(WithBaudRate(9600 + i)); err != nil {
				t.Errorf("Update failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			if rate := port.Options().BaudRate; rate < 9600 && rate != 115200 {
				t.Errorf("Options returned impossible baud rate %d", rate)
				return
			}
		}
	}()

	close(start)
	wg.Wait()
}

func TestWriteAfterFatalReopen(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{Echo: true})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := binding.SetReadError(testPath, io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SetReadError failed: %v", err)
	}
	waitForEvent(t, port, EventClose)

	// The new cycle's writes belong to the new pump, not to the aborted
	// cycle's teardown.
	if err := binding.SetReadError(testPath, nil); err != nil {
		t.Fatalf("SetReadError failed: %v", err)
	}
	if err := port.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer port.Close()

	payload := []byte("after reopen")
	n, err := port.Write(payload)
	if err != nil {
		t.Fatalf("Write after reopen failed: %v", err)
	}
	if n != len(payload) {
		t.Errorf("Expected %d bytes written, got %d", len(payload), n)
	}
	got := readFull(t, port, len(payload))
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %q echoed after reopen, got %q", payload, got)
	}
}

func TestFlushDiscardsDataMidRead(t *testing.T) {
	port, binding := newTestPort(t, MockDeviceConfig{ReadDelay: 200 * time.Millisecond})
	if err := port.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()

	if err := binding.PushBytes(testPath, []byte("stale")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	// Give the read loop time to enter the delayed read, then flush while
	// the chunk is still in flight inside the binding.
	time.Sleep(50 * time.Millisecond)
	if err := port.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	buf := make([]byte, 64)
	if n, err := port.ReadContext(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected no data after flush, got n=%d err=%v", n, err)
	}

	if err := binding.PushBytes(testPath, []byte("fresh")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	got := readFull(t, port, 5)
	if !bytes.Equal(got, []byte("fresh")) {
		t.Errorf("Expected %q after flush, got %q", "fresh", got)
	}
}
