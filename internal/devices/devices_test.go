package devices

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/saker-ai/devlink/pkg/protocol"
)

func TestMockDevices(t *testing.T) {
	m := NewMock(5, time.Second, 7)
	devices, err := m.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices returned error: %v", err)
	}
	if len(devices) != 5 {
		t.Fatalf("devices=%d, want 5", len(devices))
	}
	seen := map[string]bool{}
	for _, d := range devices {
		if d.ID == "" || d.Name == "" || d.Type == "" {
			t.Fatalf("device missing fields: %+v", d)
		}
		if seen[d.ID] {
			t.Fatalf("duplicate id %s", d.ID)
		}
		seen[d.ID] = true
		if !d.Status.Online || d.Status.BatteryLevel < 50 || d.Status.BatteryLevel > 100 {
			t.Fatalf("status=%+v", d.Status)
		}
	}
	if devices[4].Type != devices[0].Type {
		t.Fatalf("profiles do not cycle: %s vs %s", devices[4].Type, devices[0].Type)
	}
}

func TestMockReadingWithinProfile(t *testing.T) {
	m := NewMock(len(profiles), time.Second, 1)
	for i, p := range profiles {
		id, datum := m.Reading(i)
		if !strings.HasPrefix(id, p.deviceType) {
			t.Fatalf("id=%s, want prefix %s", id, p.deviceType)
		}
		if datum.SensorType != p.sensorType || datum.Unit != p.unit {
			t.Fatalf("datum=%+v, want %s in %s", datum, p.sensorType, p.unit)
		}
		if datum.Value < p.base-p.spread || datum.Value > p.base+p.spread {
			t.Fatalf("value=%v outside %v±%v", datum.Value, p.base, p.spread)
		}
	}
}

func TestMockSeedReproducible(t *testing.T) {
	a, _ := NewMock(3, time.Second, 42).Devices(context.Background())
	b, _ := NewMock(3, time.Second, 42).Devices(context.Background())
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("device %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestMockRun(t *testing.T) {
	m := NewMock(2, 5*time.Millisecond, 3)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(deviceID string, _ protocol.SensorDatum) {
			select {
			case got <- deviceID:
			default:
			}
		})
	}()
	first := <-got
	second := <-got
	cancel()
	if first == second {
		t.Fatalf("readings for %s and %s, want both devices", first, second)
	}
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run err=%v, want context.Canceled", err)
	}
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/home.yaml")
	if err != nil {
		t.Fatalf("LoadFixture returned error: %v", err)
	}
	if f.Interval != 10*time.Millisecond {
		t.Fatalf("interval=%v, want 10ms", f.Interval)
	}
	devices, err := f.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices returned error: %v", err)
	}
	want := protocol.Device{
		ID:     "thermo-1",
		Name:   "Living room thermostat",
		Type:   "thermostat",
		Status: protocol.DeviceStatus{Online: true, BatteryLevel: 87},
	}
	if len(devices) != 2 || devices[0] != want {
		t.Fatalf("devices=%+v", devices)
	}
}

func TestParseFixtureErrors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "devices: [",
		"missing id":     "devices:\n  - name: x\n",
		"duplicate id":   "devices:\n  - id: a\n  - id: a\n",
		"unknown device": "devices:\n  - id: a\nreadings:\n  - device_id: b\n",
	}
	for name, doc := range tests {
		if _, err := ParseFixture([]byte(doc)); err == nil {
			t.Fatalf("%s: error=nil, want non-nil", name)
		}
	}
	if _, err := LoadFixture("testdata/missing.yaml"); err == nil {
		t.Fatal("LoadFixture(missing) error=nil, want non-nil")
	}
}

func TestFixtureReplay(t *testing.T) {
	f, err := LoadFixture("testdata/home.yaml")
	if err != nil {
		t.Fatalf("LoadFixture returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type emitted struct {
		id    string
		datum protocol.SensorDatum
	}
	got := make(chan emitted, 8)
	go func() {
		_ = f.Run(ctx, func(id string, d protocol.SensorDatum) {
			select {
			case got <- emitted{id, d}:
			default:
			}
		})
	}()
	order := []string{"thermo-1", "lamp-1", "thermo-1"}
	for i, wantID := range order {
		select {
		case e := <-got:
			if e.id != wantID {
				t.Fatalf("reading %d id=%s, want %s", i, e.id, wantID)
			}
			if e.id == "thermo-1" && (e.datum.Value != 25.5 || e.datum.Unit != "°C") {
				t.Fatalf("datum=%+v", e.datum)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reading %d", i)
		}
	}
}
