// Package serialport provides a stream-oriented, asynchronous interface to
// serial devices behind a pluggable binding abstraction, so the same port
// lifecycle state machine drives real hardware and simulated devices alike.
//
// # Basic Usage
//
// Create and open a port with default configuration (115200 8N1, no flow
// control); ports auto-open on construction unless disabled:
//
//	port, err := serialport.New("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer)
//
// # Lifecycle
//
// A port cycles Closed -> Opening -> Open -> Closing -> Closed, and the
// cycle may repeat indefinitely on the same Port value:
//
//	port, _ := serialport.New("/dev/ttyUSB0", serialport.WithAutoOpen(false))
//	for i := 0; i < 3; i++ {
//	    if err := port.Open(); err != nil {
//	        log.Fatal(err)
//	    }
//	    // ... I/O ...
//	    port.Close()
//	}
//
// Lifecycle operations are guarded by the current state: opening an open
// port fails with ErrAlreadyOpen, closing a closed one with ErrNotOpen.
// Racing lifecycle calls are rejected, never queued.
//
// # Notifications
//
// Lifecycle transitions and incoming data are announced on the Events
// channel as a closed set of kinds:
//
//	go func() {
//	    for ev := range port.Events() {
//	        switch ev.Kind {
//	        case serialport.EventOpen:
//	        case serialport.EventReadable:
//	        case serialport.EventError:
//	            log.Println("port failed:", ev.Err)
//	        case serialport.EventClose:
//	        }
//	    }
//	}()
//
// EventClose fires exactly once per open/close cycle, including when a
// fatal I/O error (such as a disconnect) forces the port closed; in that
// case it is preceded by an EventError carrying the cause.
//
// # Bindings
//
// All device I/O goes through the Binding interface. The default is the
// platform binding over termios; tests and simulations inject a
// MockBinding instead:
//
//	mock := serialport.NewMockBinding()
//	mock.CreateDevice("/mock/loop", serialport.MockDeviceConfig{
//	    Echo:       true,
//	    ReadyBytes: []byte("READY\r\n"),
//	})
//	port, err := serialport.New("/mock/loop", serialport.WithBinding(mock))
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	port, err := serialport.New("/dev/ttyUSB0",
//	    serialport.WithBaudRate(9600),
//	    serialport.WithParity(serialport.ParityEven),
//	    serialport.WithLock(),
//	    serialport.WithReadBufferSize(16384),
//	)
//
// An open port can be reconfigured in place; only the baud rate is
// guaranteed portable across bindings:
//
//	err = port.Update(serialport.WithBaudRate(230400))
//
// # Backpressure
//
// Incoming bytes are staged in a bounded receive buffer. When a consumer
// stops calling Read the background read loop pauses instead of piling up
// data, and resumes as soon as capacity frees. Delivery is ordered and
// lossless for the lifetime of a cycle; Flush is the only operation that
// discards data, in both directions.
//
// # Port Discovery
//
// Enumerate devices, with USB metadata where sysfs provides it:
//
//	infos, err := serialport.NewNativeBinding().List()
//	for _, info := range infos {
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// # Error Handling
//
// The library provides specific error types, checked with errors.Is:
//
//	if errors.Is(err, serialport.ErrLockHeld) {
//	    // device opened exclusively elsewhere
//	}
//
// State-guard errors (ErrAlreadyOpen, ErrNotOpen, ...) are generated
// locally before any binding call and never change port state. Binding
// errors propagate unchanged. Failed operations are never retried
// implicitly and there is no automatic reconnection.
package serialport
