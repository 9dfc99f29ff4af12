package fsm

import (
	"fmt"
	"strings"
	"sync"
)

// State describes the connection state of a client session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Mode is the listen mode announced with listen events.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeManual   Mode = "manual"
	ModeRealtime Mode = "realtime"
)

// ParseMode maps a config value to a Mode, defaulting to auto.
func ParseMode(mode string) Mode {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case string(ModeManual):
		return ModeManual
	case string(ModeRealtime):
		return ModeRealtime
	default:
		return ModeAuto
	}
}

// allowed lists legal transitions. Disconnected is reachable from every
// state and handled separately.
var allowed = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected},
	StateConnected:    {},
}

// Machine is a small deterministic connection state machine.
type Machine struct {
	mu    sync.RWMutex
	state State
	mode  Mode
}

// New creates a state machine in the disconnected state with auto mode.
func New() *Machine {
	return &Machine{
		state: StateDisconnected,
		mode:  ModeAuto,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Mode returns the current listen mode.
func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode updates the listen mode.
func (m *Machine) SetMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = ParseMode(mode)
}

// BeginConnect moves Disconnected to Connecting.
func (m *Machine) BeginConnect() error {
	return m.transition(StateConnecting)
}

// Connected moves Connecting to Connected.
func (m *Machine) Connected() error {
	return m.transition(StateConnected)
}

// Disconnect moves any state to Disconnected and reports the previous one.
func (m *Machine) Disconnect() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	m.state = StateDisconnected
	return prev
}

// Is reports whether the machine is in state.
func (m *Machine) Is(state State) bool {
	return m.State() == state
}

func (m *Machine) transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range allowed[m.state] {
		if s == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s", m.state, next)
}
