package serialport

import "errors"

// Predefined error types for robust error handling
var (
	// Lifecycle state guard errors, generated by the Port before any
	// binding call is made
	ErrAlreadyOpen    = errors.New("serial port is already open")
	ErrAlreadyOpening = errors.New("serial port open is already in progress")
	ErrClosing        = errors.New("serial port close is in progress")
	ErrNotOpen        = errors.New("serial port is not open")
	ErrPortClosed     = errors.New("serial port is closed")

	// Binding-originated errors, surfaced verbatim through the Port
	ErrLockHeld         = errors.New("serial device is locked by another session")
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrUnsupported      = errors.New("operation not supported by this device")

	// Configuration errors
	ErrInvalidBaudRate = errors.New("invalid baud rate")
	ErrInvalidConfig   = errors.New("invalid serial configuration")

	// Mock binding errors
	ErrDeviceExists = errors.New("mock device already registered")
)
