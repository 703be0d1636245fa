package models

import (
	"context"
	"sync"

	"github.com/allbin/serialport"
	"github.com/allbin/serialport/internal/tui/components"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// PortEventMsg delivers a port lifecycle notification into the TUI.
type PortEventMsg struct {
	Event serialport.Event
	State serialport.State
}

// PortModel is the shared state behind the interactive terminal: the
// port handle, the raw traffic log and the input mode.
type PortModel struct {
	port     *serialport.Port
	portPath string

	rawData []components.DataMsg
	err     error
	ready   bool

	inputMode InputMode

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewPortModel(portPath string) *PortModel {
	ctx, cancel := context.WithCancel(context.Background())

	return &PortModel{
		portPath:  portPath,
		rawData:   make([]components.DataMsg, 0),
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *PortModel) GetPort() *serialport.Port {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

func (m *PortModel) SetPort(port *serialport.Port) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port = port
}

func (m *PortModel) GetPortPath() string {
	return m.portPath
}

func (m *PortModel) GetError() error {
	return m.err
}

func (m *PortModel) SetError(err error) {
	m.err = err
}

func (m *PortModel) IsReady() bool {
	return m.ready
}

func (m *PortModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *PortModel) GetRawData() []components.DataMsg {
	return m.rawData
}

func (m *PortModel) AddRawData(msg components.DataMsg) {
	m.rawData = append(m.rawData, msg)
}

func (m *PortModel) ClearData() {
	m.rawData = make([]components.DataMsg, 0)
}

func (m *PortModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *PortModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *PortModel) IsInInsertMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode == InputModeInsert
}

func (m *PortModel) GetContext() context.Context {
	return m.ctx
}

func (m *PortModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Cleanup stops the reader goroutines and closes the port.
func (m *PortModel) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
	m.mu.Unlock()
}
