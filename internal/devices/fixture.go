package devices

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
)

// Reading is one fixture entry replayed by the feed.
type Reading struct {
	DeviceID   string  `yaml:"device_id"`
	Value      float64 `yaml:"value"`
	Unit       string  `yaml:"unit"`
	SensorType string  `yaml:"sensor_type"`
}

// Fixture is a device registry and reading script loaded from YAML.
type Fixture struct {
	Registry []protocol.Device `yaml:"devices"`
	Readings []Reading         `yaml:"readings"`
	Interval time.Duration     `yaml:"interval"`

	now func() time.Time
}

var (
	_ session.DeviceSource = (*Fixture)(nil)
	_ session.Feed         = (*Fixture)(nil)
)

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture and checks that every reading names
// a known device.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	known := make(map[string]struct{}, len(f.Registry))
	for i, d := range f.Registry {
		if d.ID == "" {
			return nil, fmt.Errorf("parse fixture: device %d has no id", i)
		}
		if _, dup := known[d.ID]; dup {
			return nil, fmt.Errorf("parse fixture: duplicate device id %q", d.ID)
		}
		known[d.ID] = struct{}{}
	}
	for i, r := range f.Readings {
		if _, ok := known[r.DeviceID]; !ok {
			return nil, fmt.Errorf("parse fixture: reading %d references unknown device %q", i, r.DeviceID)
		}
	}
	if f.Interval <= 0 {
		f.Interval = DefaultInterval
	}
	f.now = time.Now
	return &f, nil
}

// Devices returns a copy of the fixture registry.
func (f *Fixture) Devices(ctx context.Context) ([]protocol.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]protocol.Device(nil), f.Registry...), nil
}

// Run replays the readings in order, one per interval, looping until ctx
// is done. A fixture without readings blocks until ctx is done.
func (f *Fixture) Run(ctx context.Context, emit session.EmitFunc) error {
	if len(f.Readings) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	for i := 0; ; i = (i + 1) % len(f.Readings) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r := f.Readings[i]
			emit(r.DeviceID, protocol.SensorDatum{
				Timestamp:  f.now().UTC(),
				Value:      r.Value,
				Unit:       r.Unit,
				SensorType: r.SensorType,
			})
		}
	}
}
