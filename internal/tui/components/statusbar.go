package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialport"
	"github.com/allbin/serialport/internal/tui/colors"
)

// StatusBar renders the bottom bar: input mode, port path, lifecycle
// state and the line settings summary.
type StatusBar struct {
	portPath string
	state    serialport.State
	err      error
	width    int
	opts     serialport.Options
	hasOpts  bool
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		state:    serialport.StateClosed,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetOptions(opts serialport.Options) {
	sb.opts = opts
	sb.hasOpts = true
}

func (sb *StatusBar) SetState(state serialport.State) {
	sb.state = state
	if state == serialport.StateOpen {
		sb.err = nil
	}
}

func (sb *StatusBar) SetError(err error) {
	sb.err = err
}

func flowControlToString(fc serialport.FlowControl) string {
	switch fc {
	case serialport.FlowControlRTSCTS:
		return "RTS/CTS"
	default:
		return "None"
	}
}

func parityToString(p serialport.Parity) string {
	switch p {
	case serialport.ParityEven:
		return "E"
	case serialport.ParityOdd:
		return "O"
	case serialport.ParityMark:
		return "M"
	case serialport.ParitySpace:
		return "S"
	default:
		return "N"
	}
}

func (sb *StatusBar) stateIndicator() string {
	switch {
	case sb.err != nil:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("✗")
	case sb.state == serialport.StateOpen:
		return lipgloss.NewStyle().Foreground(colors.Green).Render("●")
	case sb.state == serialport.StateOpening || sb.state == serialport.StateClosing:
		return lipgloss.NewStyle().Foreground(colors.Yellow).Render("○")
	default:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("○")
	}
}

// View renders the full-width status bar.
func (sb *StatusBar) View(inputMode, sendingMode, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	var modeStyle lipgloss.Style
	if inputMode == "INSERT" {
		modeStyle = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Green).
			Bold(true).
			Padding(0, 1)
	} else {
		modeStyle = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Blue).
			Bold(true).
			Padding(0, 1)
	}
	mode := modeStyle.Render(inputMode)

	portStyle := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1)
	port := portStyle.Render(sb.portPath)

	var connInfo string
	if sb.hasOpts {
		connInfo = fmt.Sprintf("⚡ %d baud %d%s%d %s",
			sb.opts.BaudRate,
			sb.opts.DataBits,
			parityToString(sb.opts.Parity),
			sb.opts.StopBits,
			flowControlToString(sb.opts.FlowControl))
	} else {
		connInfo = "⚡ serial"
	}
	connectionDetails := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(connInfo)

	timeStyled := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	var sendingModeInfo string
	if inputMode == "INSERT" {
		sendingModeInfo = lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode))
	}

	var leftSide string
	if sendingModeInfo != "" {
		leftSide = lipgloss.JoinHorizontal(lipgloss.Left, mode, port, sb.stateIndicator(), sendingModeInfo, divider)
	} else {
		leftSide = lipgloss.JoinHorizontal(lipgloss.Left, mode, port, sb.stateIndicator(), divider)
	}

	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, connectionDetails, divider, timeStyled)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	barStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	return barStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
