package serialport

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMockCreateDevice(t *testing.T) {
	binding := NewMockBinding()

	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Expected ErrDeviceExists for duplicate, got %v", err)
	}
	if err := binding.RemoveDevice("/mock/a"); err != nil {
		t.Fatalf("RemoveDevice failed: %v", err)
	}
	if err := binding.RemoveDevice("/mock/a"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound for removed device, got %v", err)
	}
}

func TestMockOpenUnregistered(t *testing.T) {
	binding := NewMockBinding()
	if _, err := binding.Open("/mock/missing", DefaultOptions()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestMockExclusiveLock(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := binding.Open("/mock/a", DefaultOptions()); !errors.Is(err, ErrLockHeld) {
		t.Errorf("Expected ErrLockHeld while open, got %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The lock is released on close; the device can be reopened.
	sess2, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	sess2.Close()
}

func TestMockInvalidBaudRate(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	opts := DefaultOptions()
	opts.BaudRate = 0
	if _, err := binding.Open("/mock/a", opts); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}
}

func TestMockReadyBytesReseededPerOpen(t *testing.T) {
	ready := []byte("BOOT\r\n")
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{ReadyBytes: ready}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Read only part of the ready marker, then pile on extra data that
	// will still be unread at close time.
	buf := make([]byte, 2)
	if n, err := sess.Read(buf); err != nil || n != 2 {
		t.Fatalf("Read failed: n=%d err=%v", n, err)
	}
	if err := binding.PushBytes("/mock/a", []byte("residual")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	sess.Close()

	// Residual bytes are discarded on close; a new open starts with a
	// fresh ready seed only.
	sess, err = binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer sess.Close()

	got := make([]byte, 64)
	n, err := sess.Read(got)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got[:n], ready) {
		t.Errorf("Expected fresh ready bytes %q, got %q", ready, got[:n])
	}
}

func TestMockEcho(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{Echo: true}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	data := []byte("loopback")
	if n, err := sess.Write(data); err != nil || n != len(data) {
		t.Fatalf("Write failed: n=%d err=%v", n, err)
	}

	buf := make([]byte, 64)
	n, err := sess.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], data) {
		t.Errorf("Expected echo %q, got %q", data, buf[:n])
	}
}

func TestMockReadBlocksUntilData(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	buf := make([]byte, 16)
	go func() {
		n, err := sess.Read(buf)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		t.Fatalf("Read returned before data was available: n=%d err=%v", res.n, res.err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := binding.PushBytes("/mock/a", []byte("late")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Read failed: %v", res.err)
		}
		if !bytes.Equal(buf[:res.n], []byte("late")) {
			t.Errorf("Expected %q, got %q", "late", buf[:res.n])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not wake up after PushBytes")
	}
}

func TestMockCloseWakesBlockedRead(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	sess.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrPortClosed) {
			t.Errorf("Expected ErrPortClosed from read on closed session, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake blocked read")
	}
}

func TestMockFlush(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{ReadyBytes: []byte("junk")}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if err := sess.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Buffer must be empty: a fresh push is the next thing read.
	if err := binding.PushBytes("/mock/a", []byte("new")); err != nil {
		t.Fatalf("PushBytes failed: %v", err)
	}
	buf := make([]byte, 16)
	n, err := sess.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("new")) {
		t.Errorf("Expected %q after flush, got %q", "new", buf[:n])
	}
}

func TestMockFaultInjection(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if err := binding.SetWriteError("/mock/a", io.ErrClosedPipe); err != nil {
		t.Fatalf("SetWriteError failed: %v", err)
	}
	if _, err := sess.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Expected injected write error, got %v", err)
	}
	if err := binding.SetWriteError("/mock/a", nil); err != nil {
		t.Fatalf("SetWriteError failed: %v", err)
	}
	if _, err := sess.Write([]byte("x")); err != nil {
		t.Errorf("Expected write to succeed after clearing fault, got %v", err)
	}

	if err := binding.SetReadError("/mock/a", io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SetReadError failed: %v", err)
	}
	if _, err := sess.Read(make([]byte, 4)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected injected read error, got %v", err)
	}
}

func TestMockSessionOpsAfterClose(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := sess.Read(make([]byte, 4)); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Read after close: expected ErrPortClosed, got %v", err)
	}
	if _, err := sess.Write([]byte("x")); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write after close: expected ErrPortClosed, got %v", err)
	}
	if err := sess.Flush(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Flush after close: expected ErrPortClosed, got %v", err)
	}
	if err := sess.Drain(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Drain after close: expected ErrPortClosed, got %v", err)
	}
	if err := sess.Close(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Double close: expected ErrPortClosed, got %v", err)
	}
}

func TestMockList(t *testing.T) {
	binding := NewMockBinding()
	for _, path := range []string{"/mock/c", "/mock/a", "/mock/b"} {
		if err := binding.CreateDevice(path, MockDeviceConfig{}); err != nil {
			t.Fatalf("CreateDevice failed: %v", err)
		}
	}

	infos, err := binding.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 devices, got %d", len(infos))
	}
	want := []string{"/mock/a", "/mock/b", "/mock/c"}
	wantSerials := []string{"MOCK0000", "MOCK0001", "MOCK0002"}
	for i, info := range infos {
		if info.Path != want[i] {
			t.Errorf("List order: expected %s at %d, got %s", want[i], i, info.Path)
		}
		if info.SerialNumber != wantSerials[i] {
			t.Errorf("Serial for %s: expected %s, got %s", info.Path, wantSerials[i], info.SerialNumber)
		}
		if info.Description == "" {
			t.Error("Description should not be empty")
		}
	}

	// Serial numbers follow path order, so they are stable across calls.
	again, err := binding.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for i, info := range again {
		if info.SerialNumber != infos[i].SerialNumber {
			t.Errorf("Serial for %s changed between calls: %s vs %s",
				info.Path, infos[i].SerialNumber, info.SerialNumber)
		}
	}
}

func TestMockUpdateRecordsOptions(t *testing.T) {
	binding := NewMockBinding()
	if err := binding.CreateDevice("/mock/a", MockDeviceConfig{}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	sess, err := binding.Open("/mock/a", DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	opts := DefaultOptions()
	opts.BaudRate = 57600
	if err := sess.Update(opts); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	last, err := binding.LastOptions("/mock/a")
	if err != nil {
		t.Fatalf("LastOptions failed: %v", err)
	}
	if last.BaudRate != 57600 {
		t.Errorf("Expected recorded baud rate 57600, got %d", last.BaudRate)
	}
}
