package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialport"
	"github.com/allbin/serialport/internal/tui/colors"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Port state styles
	StateOpenStyle = lipgloss.NewStyle().
			Foreground(colors.Green).
			Bold(true)

	StateClosedStyle = lipgloss.NewStyle().
				Foreground(colors.Red).
				Bold(true)

	StateTransitionStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red).
			Align(lipgloss.Center)
)

// StateStyle picks the style matching a port lifecycle state.
func StateStyle(state serialport.State) lipgloss.Style {
	switch state {
	case serialport.StateOpen:
		return StateOpenStyle
	case serialport.StateOpening, serialport.StateClosing:
		return StateTransitionStyle
	default:
		return StateClosedStyle
	}
}
