package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal is the scrollback view for serial traffic.
type Terminal struct {
	viewport  viewport.Model
	formatter *DataFormatter
	lines     []string
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(true, true),
		lines:     make([]string, 0),
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

func (t *Terminal) AddMessage(msg DataMsg) {
	t.lines = append(t.lines, t.formatter.FormatMessage(msg))
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	t.viewport.GotoBottom()
}

// AddNotice appends a pre-formatted status line to the scrollback.
func (t *Terminal) AddNotice(line string) {
	t.lines = append(t.lines, line)
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	t.viewport.GotoBottom()
}

// Refresh re-renders the scrollback from raw messages, picking up
// display mode changes.
func (t *Terminal) Refresh(rawData []DataMsg) {
	t.lines = t.formatter.FormatMessages(rawData)
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Clear() {
	t.lines = make([]string, 0)
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only pass resize messages to the viewport so it never consumes
	// our key bindings.
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return t.viewport.Update(msg)
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
