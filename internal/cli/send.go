package cli

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialport"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port with configurable options.

This command sends data to the specified serial port. Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | serialterm send /dev/ttyUSB0
- Interactive mode: serialterm send /dev/ttyUSB0 (prompts for input)

Features include:
- Multiple input methods (argument, stdin, interactive)
- Automatic line endings (--newline flag)
- Hex input support (--hex flag)
- Optional drain to wait for the device to accept all bytes

Example usage:
  serialterm send "Hello World" /dev/ttyUSB0
  serialterm send "AT+GMR" /dev/ttyUSB0 --newline
  echo "test" | serialterm send /dev/ttyUSB0
  serialterm send --mock "ping"`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, portPath, err := resolveSendInput(args)
		if err != nil {
			return err
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		drain, _ := cmd.Flags().GetBool("drain")

		payload := []byte(data)
		if hexMode {
			payload, err = parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		} else if addNewline {
			payload = append(payload, '\n')
		}

		return sendData(portPath, payload, timeout, drain)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data")
	sendCmd.Flags().Bool("drain", false, "Wait until the device has accepted all bytes before closing")
}

// resolveSendInput sorts out the "send data port" vs "send port" argument
// forms, falling back to stdin or an interactive prompt for the data.
func resolveSendInput(args []string) (data, portPath string, err error) {
	if len(args) >= 2 {
		return args[0], args[1], nil
	}

	// Under --mock a single argument is the data, not the device.
	if len(args) == 1 {
		if mockPath, mockErr := resolvePath(nil); mockErr == nil {
			return args[0], mockPath, nil
		}
	}

	portPath, err = resolvePath(args)
	if err != nil {
		return "", "", err
	}

	stat, statErr := os.Stdin.Stat()
	if statErr != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return promptForData(), portPath, nil
	}

	stdinData, readErr := io.ReadAll(os.Stdin)
	if readErr != nil {
		return "", "", fmt.Errorf("error reading from stdin: %w", readErr)
	}
	return strings.TrimRight(string(stdinData), "\r\n"), portPath, nil
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}

	return hex.DecodeString(hexStr)
}

func sendData(portPath string, payload []byte, timeout time.Duration, drain bool) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	binding := newBinding()
	opts, err := portOptions(binding)
	if err != nil {
		return err
	}

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	port, err := serialport.New(portPath, opts...)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("%s Connected successfully\n", successStyle.Render("✓"))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(payload))

	n, err := port.WriteContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}

	if drain {
		if err := port.Drain(); err != nil {
			return fmt.Errorf("failed to drain output: %w", err)
		}
	}

	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), n)

	preview := string(payload)
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	preview = strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, preview)

	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview)

	return nil
}
