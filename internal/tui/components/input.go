package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialport/internal/tui/colors"
	"github.com/allbin/serialport/internal/tui/styles"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	switch s {
	case SendingModeHex:
		return "HEX"
	default:
		return "ASCII"
	}
}

// Input is the send field at the bottom of the terminal, with a
// command history and an ASCII/hex sending mode toggle.
type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       []string
	historyIndex  int
	currentInput  string // preserved while navigating history
	terminalWidth int
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeASCII,
		history:      make([]string, 0),
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	usableWidth := width - 6
	if usableWidth < 20 {
		usableWidth = 20
	}
	i.textInput.Width = usableWidth
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	switch i.sendingMode {
	case SendingModeASCII:
		i.sendingMode = SendingModeHex
		i.textInput.Placeholder = "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
	case SendingModeHex:
		i.sendingMode = SendingModeASCII
		i.textInput.Placeholder = "Type message and press Enter to send..."
	}
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) ViewWithMode(inputMode string, isInsertMode bool) string {
	var promptStyle lipgloss.Style
	var promptSymbol string

	if i.sendingMode == SendingModeHex {
		promptSymbol = "#"
		promptStyle = lipgloss.NewStyle().
			Foreground(colors.Yellow).
			Bold(true)
	} else {
		promptSymbol = ">"
		promptStyle = lipgloss.NewStyle().
			Foreground(colors.Green).
			Bold(true)
	}

	styledPrompt := promptStyle.Render(promptSymbol)

	var inputContent string
	if isInsertMode {
		inputContent = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", i.textInput.View())
	} else {
		instruction := lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render("Press 'i' to enter insert mode")
		inputContent = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", instruction)
	}

	// border adds 2 columns, padding another 2
	adjustedWidth := i.terminalWidth - 4
	if adjustedWidth < 10 {
		adjustedWidth = 10
	}

	inputStyle := styles.InputStyle.
		Width(adjustedWidth).
		AlignHorizontal(lipgloss.Left)

	if isInsertMode {
		inputStyle = inputStyle.BorderForeground(colors.Green)
	}

	return inputStyle.Render(inputContent)
}

// AddToHistory records a sent command, skipping blanks and immediate
// duplicates.
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}

	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)

	if len(i.history) > 100 {
		i.history = i.history[1:]
	}

	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}

	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
	} else {
		i.historyIndex = -1
		i.textInput.SetValue(i.currentInput)
		i.currentInput = ""
	}
}
