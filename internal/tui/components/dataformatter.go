package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialport/internal/tui/colors"
)

// DataMsg carries one chunk of serial traffic through the TUI, either
// received from the device or queued for transmission.
type DataMsg struct {
	Timestamp time.Time
	Data      []byte
	IsTX      bool
	Status    string // TX only: "QUEUED", "WRITTEN", "ERROR"; empty for RX
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) FormatMessage(msg DataMsg) string {
	timestamp := msg.Timestamp.Format("15:04:05.000")

	var indicator string
	if msg.IsTX {
		var txColor lipgloss.Color
		var statusText string

		switch msg.Status {
		case "QUEUED":
			txColor = colors.Yellow
			statusText = "TX ○"
		case "WRITTEN":
			txColor = colors.Green
			statusText = "TX ✓"
		case "ERROR":
			txColor = colors.Red
			statusText = "TX ✗"
		default:
			txColor = colors.Peach
			statusText = "TX"
		}

		indicator = lipgloss.NewStyle().
			Foreground(txColor).
			Bold(true).
			Render("↗ " + statusText)
	} else {
		indicator = lipgloss.NewStyle().
			Foreground(colors.Sky).
			Bold(true).
			Render("↙ RX")
	}

	var parts []string

	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", msg.Data))
	}

	if df.mode.ShowASCII {
		var ascii strings.Builder
		for _, b := range msg.Data {
			if b >= 32 && b <= 126 {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		parts = append(parts, fmt.Sprintf("ASCII: %s", ascii.String()))
	}

	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}

	timestampStyled := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", timestamp))

	return fmt.Sprintf("%s %s: %s", timestampStyled, indicator, strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatMessages(messages []DataMsg) []string {
	formatted := make([]string, len(messages))
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg)
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}
