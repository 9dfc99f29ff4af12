// Package devices provides device sources for a session: a mock generator
// and a YAML fixture replayer. Both also feed sensor readings.
package devices

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
)

// DefaultInterval is the feed period used when none is configured.
const DefaultInterval = 2 * time.Second

type profile struct {
	deviceType string
	name       string
	sensorType string
	unit       string
	base       float64
	spread     float64
}

var profiles = []profile{
	{deviceType: "thermostat", name: "Thermostat", sensorType: "temperature", unit: "°C", base: 21, spread: 4},
	{deviceType: "hygrometer", name: "Humidity sensor", sensorType: "humidity", unit: "%", base: 45, spread: 15},
	{deviceType: "light", name: "Light", sensorType: "illuminance", unit: "lx", base: 300, spread: 250},
	{deviceType: "plug", name: "Smart plug", sensorType: "power", unit: "W", base: 40, spread: 35},
}

// Mock generates a fixed set of devices and random walk readings for them.
type Mock struct {
	count    int
	interval time.Duration
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

var (
	_ session.DeviceSource = (*Mock)(nil)
	_ session.Feed         = (*Mock)(nil)
)

// NewMock returns a generator of count devices emitting every interval.
// seed makes the generated values reproducible.
func NewMock(count int, interval time.Duration, seed uint64) *Mock {
	if count <= 0 {
		count = 1
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Mock{
		count:    count,
		interval: interval,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Devices returns the generated registry.
func (m *Mock) Devices(ctx context.Context) ([]protocol.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]protocol.Device, 0, m.count)
	for i := range m.count {
		p := profiles[i%len(profiles)]
		out = append(out, protocol.Device{
			ID:   fmt.Sprintf("%s-%d", p.deviceType, i+1),
			Name: fmt.Sprintf("%s %d", p.name, i+1),
			Type: p.deviceType,
			Status: protocol.DeviceStatus{
				Online:       true,
				BatteryLevel: m.float(50, 100),
			},
		})
	}
	return out, nil
}

// Reading returns one reading for the i-th generated device.
func (m *Mock) Reading(i int) (string, protocol.SensorDatum) {
	p := profiles[i%len(profiles)]
	value := p.base + m.float(-p.spread, p.spread)
	return fmt.Sprintf("%s-%d", p.deviceType, i+1), protocol.SensorDatum{
		Timestamp:  m.now().UTC(),
		Value:      math.Round(value*10) / 10,
		Unit:       p.unit,
		SensorType: p.sensorType,
	}
}

// Run emits one reading per device every interval until ctx is done.
func (m *Mock) Run(ctx context.Context, emit session.EmitFunc) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for i := range m.count {
				emit(m.Reading(i))
			}
		}
	}
}

func (m *Mock) float(lo, hi float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Round((lo+m.rng.Float64()*(hi-lo))*10) / 10
}
