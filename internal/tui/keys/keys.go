package keys

import "github.com/charmbracelet/bubbles/key"

// TermKeys holds the key bindings for the interactive terminal.
type TermKeys struct {
	Quit           key.Binding
	Help           key.Binding
	InsertMode     key.Binding
	Escape         key.Binding
	Clear          key.Binding
	ToggleHex      key.Binding
	ToggleASCII    key.Binding
	ToggleSignals  key.Binding
	FlushPort      key.Binding
	Enter          key.Binding
	ToggleSendMode key.Binding
	Up             key.Binding
	Down           key.Binding
}

func NewTermKeys() TermKeys {
	return TermKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		InsertMode: key.NewBinding(
			key.WithKeys("i", "I"),
			key.WithHelp("i", "insert mode"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "normal mode"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear buffer"),
		),
		ToggleHex: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle hex"),
		),
		ToggleASCII: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle ascii"),
		),
		ToggleSignals: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "show modem signals"),
		),
		FlushPort: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "flush receive buffer"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		ToggleSendMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle send mode"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "history up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "history down"),
		),
	}
}

func (k TermKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Clear, k.Quit}
}

func (k TermKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Clear, k.ToggleSendMode},
		{k.ToggleHex, k.ToggleASCII, k.ToggleSignals, k.FlushPort},
		{k.Enter, k.Up, k.Down},
		{k.Help, k.Quit},
	}
}
