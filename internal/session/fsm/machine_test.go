package fsm

import "testing"

func TestMachineDefault(t *testing.T) {
	m := New()
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state=%s, want %s", got, StateDisconnected)
	}
	if got := m.Mode(); got != ModeAuto {
		t.Fatalf("mode=%s, want %s", got, ModeAuto)
	}
}

func TestMachineLifecycle(t *testing.T) {
	m := New()
	if err := m.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect returned error: %v", err)
	}
	if err := m.Connected(); err != nil {
		t.Fatalf("Connected returned error: %v", err)
	}
	if !m.Is(StateConnected) {
		t.Fatalf("state=%s, want %s", m.State(), StateConnected)
	}
	if prev := m.Disconnect(); prev != StateConnected {
		t.Fatalf("prev=%s, want %s", prev, StateConnected)
	}
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state=%s, want %s", got, StateDisconnected)
	}
}

func TestMachineInvalidTransitions(t *testing.T) {
	m := New()
	if err := m.Connected(); err == nil {
		t.Fatal("Connected from disconnected error=nil, want non-nil")
	}
	_ = m.BeginConnect()
	if err := m.BeginConnect(); err == nil {
		t.Fatal("BeginConnect twice error=nil, want non-nil")
	}
	_ = m.Connected()
	if err := m.BeginConnect(); err == nil {
		t.Fatal("BeginConnect while connected error=nil, want non-nil")
	}
}

func TestMachineFailedConnect(t *testing.T) {
	m := New()
	_ = m.BeginConnect()
	if prev := m.Disconnect(); prev != StateConnecting {
		t.Fatalf("prev=%s, want %s", prev, StateConnecting)
	}
	if err := m.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect after failure returned error: %v", err)
	}
}

func TestMachineSetMode(t *testing.T) {
	tests := map[string]Mode{
		"manual":     ModeManual,
		" Realtime ": ModeRealtime,
		"":           ModeAuto,
		"bogus":      ModeAuto,
	}
	m := New()
	for in, want := range tests {
		m.SetMode(in)
		if got := m.Mode(); got != want {
			t.Fatalf("SetMode(%q) mode=%s, want %s", in, got, want)
		}
	}
}
