package serialport

import (
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
)

// ResetUSBDevice performs a USB-level reset of the device behind a port
// path. This can recover hardware that is in a hung/unresponsive state.
//
// Requires the usbreset utility (usbutils package) and permissions to
// access the USB device node.
func ResetUSBDevice(portPath string) error {
	info, err := nativeBinding.Info(portPath)
	if err != nil {
		return fmt.Errorf("failed to get port info: %w", err)
	}

	if info.BusNumber == "" || info.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}
	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}

	// usbreset expects zero-padded 3-digit bus and device numbers
	usbPath := fmt.Sprintf("%03s/%03s", info.BusNumber, info.DeviceNumber)

	cmd := exec.Command("usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("usbreset failed: %w (output: %s)", err, string(output))
	}

	// USB devices typically take 1-2 seconds to re-enumerate
	time.Sleep(2 * time.Second)
	return nil
}

// ResetUSBDeviceBySerial resets a USB device by its serial number. Useful
// when device paths change across reboots or with multiple adapters
// connected.
func ResetUSBDeviceBySerial(serialNumber string) error {
	infos, err := nativeBinding.List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.SerialNumber == serialNumber {
			return ResetUSBDevice(info.Path)
		}
	}
	return fmt.Errorf("device with serial %s not found", serialNumber)
}

// IsUSBResetAvailable checks if the usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}
