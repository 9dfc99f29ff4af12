package protocol

import (
	"fmt"
	"strings"
	"time"
)

// DeviceStatus is the last reported health of a device.
type DeviceStatus struct {
	Online       bool    `json:"online" yaml:"online"`
	BatteryLevel float64 `json:"batteryLevel" yaml:"battery_level"`
}

// Device is an entry of the session device registry.
type Device struct {
	ID     string       `json:"id" yaml:"id"`
	Name   string       `json:"name" yaml:"name"`
	Type   string       `json:"type" yaml:"type"`
	Status DeviceStatus `json:"status" yaml:"status"`
}

// ControlCommand asks a device to perform Command with Params.
type ControlCommand struct {
	DeviceID  string         `json:"device_id"`
	Command   string         `json:"command"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks the fields a gateway needs to route the command.
func (c ControlCommand) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return fmt.Errorf("%w: missing device_id", ErrInvalidCommand)
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidCommand)
	}
	return nil
}

// SensorDatum is a single reading reported by a device.
type SensorDatum struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	SensorType string    `json:"sensorType"`
}
