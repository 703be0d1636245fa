package serialport

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Serial device name patterns recognized during enumeration
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

// Virtual terminals and pseudo-terminals are never serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),
	regexp.MustCompile(`^console$`),
	regexp.MustCompile(`^ptmx$`),
	regexp.MustCompile(`^pty.*$`),
	regexp.MustCompile(`^pts/.*$`),
}

// List enumerates communication-capable serial devices under /dev,
// enriched with USB metadata from sysfs where available.
func (b *NativeBinding) List() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}

	var infos []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if !matchesSerialPattern(name) || matchesExcludePattern(name) {
			continue
		}
		path := filepath.Join("/dev", name)
		if !isCharacterDevice(path) {
			continue
		}
		info := DeviceInfo{
			Path:        path,
			Name:        name,
			Description: deviceDescription(name),
		}
		if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
			enrichUSBInfo(&info, filepath.Join("/sys/class/tty", name, "device"))
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Info returns enumeration metadata for a single device path
func (b *NativeBinding) Info(path string) (DeviceInfo, error) {
	if !isCharacterDevice(path) {
		return DeviceInfo{}, ErrDeviceNotFound
	}
	name := filepath.Base(path)
	info := DeviceInfo{
		Path:        path,
		Name:        name,
		Description: deviceDescription(name),
	}
	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(&info, filepath.Join("/sys/class/tty", name, "device"))
	}
	return info, nil
}

func matchesSerialPattern(name string) bool {
	for _, pattern := range serialPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

func matchesExcludePattern(name string) bool {
	for _, pattern := range excludePatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// deviceDescription provides human-readable descriptions per port type
func deviceDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo fills USB metadata by walking up from a sysfs tty device
// directory to the USB device node that carries idVendor/idProduct.
// deviceDir is /sys/class/tty/<name>/device for real hardware; tests point
// it at a fabricated tree.
func enrichUSBInfo(info *DeviceInfo, deviceDir string) {
	usbDir := findUSBDeviceDir(deviceDir)
	if usbDir == "" {
		return
	}
	info.VendorID = readSysfsFile(filepath.Join(usbDir, "idVendor"))
	info.ProductID = readSysfsFile(filepath.Join(usbDir, "idProduct"))
	info.Manufacturer = readSysfsFile(filepath.Join(usbDir, "manufacturer"))
	info.Product = readSysfsFile(filepath.Join(usbDir, "product"))
	info.SerialNumber = readSysfsFile(filepath.Join(usbDir, "serial"))
	info.BusNumber = readSysfsFile(filepath.Join(usbDir, "busnum"))
	info.DeviceNumber = readSysfsFile(filepath.Join(usbDir, "devnum"))
}

// findUSBDeviceDir resolves deviceDir and walks toward the root until it
// finds a directory containing idVendor, the marker of a USB device node.
func findUSBDeviceDir(deviceDir string) string {
	dir, err := filepath.EvalSymlinks(deviceDir)
	if err != nil {
		return ""
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}

// readSysfsFile reads and trims a single-value sysfs attribute, returning
// an empty string when the attribute is absent.
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
