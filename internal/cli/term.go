package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialport"
	"github.com/allbin/serialport/internal/tui/components"
	"github.com/allbin/serialport/internal/tui/keys"
	"github.com/allbin/serialport/internal/tui/models"
	"github.com/allbin/serialport/internal/tui/styles"
)

// termCmd represents the term command
var termCmd = &cobra.Command{
	Use:   "term <port>",
	Short: "Interactive terminal with bidirectional communication",
	Long: `Open an interactive terminal session on a serial port.

This command opens the specified serial port and provides an interactive
terminal with real-time bidirectional communication. Features include:
- Real-time data streaming with timestamps
- Input field for sending data (ASCII and hex modes)
- Port lifecycle indicators driven by port notifications
- Modem signal read-back (CTS/DSR/RI/DCD)
- Receive buffer flush from the keyboard
- Clean, responsive interface

Example usage:
  serialterm term /dev/ttyUSB0
  serialterm term /dev/ttyUSB0 --baud 9600
  serialterm term --mock`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath, err := resolvePath(args)
		if err != nil {
			return err
		}
		return runTermTUI(portPath)
	},
}

func init() {
	rootCmd.AddCommand(termCmd)
}

// termModel represents the Bubble Tea model for the term command
type termModel struct {
	*models.PortModel
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.TermKeys
}

func runTermTUI(portPath string) error {
	binding := newBinding()
	opts, err := portOptions(binding)
	if err != nil {
		return err
	}
	opts = append(opts, serialport.WithAutoOpen(false))

	port, err := serialport.New(portPath, opts...)
	if err != nil {
		return err
	}

	m := termModel{
		PortModel: models.NewPortModel(portPath),
		terminal:  components.NewTerminal(0, 0), // sized by the first WindowSizeMsg
		statusBar: components.NewStatusBar(portPath),
		input:     components.NewInput("Type message and press Enter to send..."),
		help:      help.New(),
		keys:      keys.NewTermKeys(),
	}
	m.SetPort(port)
	m.statusBar.SetOptions(port.Options())

	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Forward port notifications into the TUI.
	go func() {
		for ev := range port.Events() {
			p.Send(models.PortEventMsg{Event: ev, State: port.State()})
		}
	}()

	// Open and read in the background so the UI starts immediately.
	go func() {
		if err := port.Open(); err != nil {
			p.Send(models.PortEventMsg{
				Event: serialport.Event{Kind: serialport.EventError, Err: err},
				State: port.State(),
			})
			return
		}

		buffer := make([]byte, 1024)
		for {
			n, err := port.ReadContext(m.GetContext(), buffer)
			if err != nil {
				if m.GetContext().Err() != nil {
					return
				}
				// Port closed underneath us; the event stream reports why.
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buffer[:n])
				p.Send(components.DataMsg{
					Timestamp: time.Now(),
					Data:      data,
				})
			}
		}
	}()

	_, err = p.Run()

	m.Cleanup()
	return err
}

func (m *termModel) Init() tea.Cmd {
	return nil
}

func (m *termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := 3
		statusBarHeight := 1
		m.terminal.SetSize(msg.Width, msg.Height-inputHeight-statusBarHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.SetReady(true)

	case models.PortEventMsg:
		m.statusBar.SetState(msg.State)
		switch msg.Event.Kind {
		case serialport.EventOpen:
			m.input.Focus()
		case serialport.EventError:
			m.SetError(msg.Event.Err)
			m.statusBar.SetError(msg.Event.Err)
			if m.IsReady() {
				m.terminal.AddNotice(styles.ErrorStyle.Render(fmt.Sprintf("port error: %v", msg.Event.Err)))
			}
		case serialport.EventClose:
			if m.IsReady() {
				m.terminal.AddNotice(lipgloss.NewStyle().Faint(true).Render("port closed"))
			}
		}

	case components.DataMsg:
		if m.IsReady() {
			m.AddRawData(msg)
			m.terminal.AddMessage(msg)
		}

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Enter):
				cmds = append(cmds, m.sendInput()...)
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, tea.Batch(cmds...)
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.Cleanup()
				return m, tea.Quit

			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, tea.Batch(cmds...)

			case key.Matches(msg, m.keys.Clear):
				m.ClearData()
				m.terminal.Clear()

			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll

			case key.Matches(msg, m.keys.ToggleHex):
				m.terminal.ToggleHex()
				m.terminal.Refresh(m.GetRawData())

			case key.Matches(msg, m.keys.ToggleASCII):
				m.terminal.ToggleASCII()
				m.terminal.Refresh(m.GetRawData())

			case key.Matches(msg, m.keys.ToggleSignals):
				m.showSignals()

			case key.Matches(msg, m.keys.FlushPort):
				m.flushPort()

			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
			}
		}
	}

	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg.(type) {
	case tea.WindowSizeMsg:
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// sendInput queues the input field contents on the port, reporting
// transmit progress back into the scrollback.
func (m *termModel) sendInput() []tea.Cmd {
	port := m.GetPort()
	if m.input.Value() == "" || port == nil {
		return nil
	}

	inputStr := m.input.Value()
	var dataToSend []byte
	var displayData []byte
	var err error

	switch m.input.GetSendingMode() {
	case components.SendingModeASCII:
		dataToSend = []byte(inputStr + "\n")
		displayData = []byte(inputStr)
	case components.SendingModeHex:
		dataToSend, err = parseHexString(inputStr)
		if err != nil {
			m.terminal.AddNotice(styles.ErrorStyle.Render(fmt.Sprintf("invalid hex input: %v", err)))
			return nil
		}
		displayData = dataToSend
	}

	writeStatusCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := port.WriteContext(ctx, dataToSend)
		writeStatusCh <- err
	}()

	cmds := []tea.Cmd{func() tea.Msg {
		err := <-writeStatusCh
		final := components.DataMsg{
			Timestamp: time.Now(),
			Data:      displayData,
			IsTX:      true,
			Status:    "WRITTEN",
		}
		if err != nil {
			final.Status = "ERROR"
		}
		return final
	}}

	m.AddRawData(components.DataMsg{
		Timestamp: time.Now(),
		Data:      displayData,
		IsTX:      true,
		Status:    "QUEUED",
	})
	m.terminal.AddMessage(components.DataMsg{
		Timestamp: time.Now(),
		Data:      displayData,
		IsTX:      true,
		Status:    "QUEUED",
	})

	m.input.AddToHistory(inputStr)
	m.input.SetValue("")
	return cmds
}

func (m *termModel) showSignals() {
	port := m.GetPort()
	if port == nil {
		return
	}

	sig, err := port.GetSignals()
	if err != nil {
		m.terminal.AddNotice(styles.ErrorStyle.Render(fmt.Sprintf("signals unavailable: %v", err)))
		return
	}

	mark := func(v bool) string {
		if v {
			return "✓"
		}
		return "✗"
	}
	m.terminal.AddNotice(fmt.Sprintf("signals: CTS %s  DSR %s  RI %s  DCD %s  RTS %s  DTR %s",
		mark(sig.CTS), mark(sig.DSR), mark(sig.RI), mark(sig.DCD), mark(sig.RTS), mark(sig.DTR)))
}

func (m *termModel) flushPort() {
	port := m.GetPort()
	if port == nil {
		return
	}

	if err := port.Flush(); err != nil {
		m.terminal.AddNotice(styles.ErrorStyle.Render(fmt.Sprintf("flush failed: %v", err)))
		return
	}
	m.terminal.AddNotice(lipgloss.NewStyle().Faint(true).Render("receive buffer flushed"))
}

func (m *termModel) View() string {
	var content string
	if m.IsReady() {
		content = m.terminal.View()
	} else {
		content = "Initializing..."
	}

	inputMode := m.GetInputMode().String()
	input := m.input.ViewWithMode(inputMode, m.IsInInsertMode())

	sendingMode := m.input.GetSendingMode().String()
	timestamp := time.Now().Format("15:04:05")

	terminalWidth := 80
	if m.IsReady() {
		terminalWidth = m.terminal.Width()
	}
	m.statusBar.SetWidth(terminalWidth)

	statusBar := m.statusBar.View(inputMode, sendingMode, timestamp)

	contentWithBorder := styles.ContentBorderStyle.Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		contentWithBorder,
		input,
		statusBar,
	)
}
