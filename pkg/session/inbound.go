package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// sensorFrame is the gateway's reading push.
type sensorFrame struct {
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	SensorType string    `json:"sensor_type"`
}

type devicesFrame struct {
	Devices []protocol.Device `json:"devices"`
}

func (c *Client) inbound(gen uint64) Inbound {
	return Inbound{
		OnText:  func(text string) { c.handleText(gen, text) },
		OnAudio: func(frame []byte) { c.handleAudio(gen, frame) },
		OnClose: func(err error) { c.handleClose(gen, err) },
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

func (c *Client) handleText(gen uint64, text string) {
	if !c.current(gen) {
		return
	}
	resp, err := c.decoder.Decode(text)
	if err != nil {
		c.reportError(fmt.Errorf("session: inbound frame: %w", err))
		return
	}
	c.recorder.MessageReceived(resp.ResponseType())

	if obj, ok := resp.(protocol.Object); ok {
		if err := c.applyObject(gen, obj); err != nil {
			c.reportError(err)
		}
	}
	c.Emit(BusEvent{Name: resp.ResponseType(), Payload: resp})
}

func (c *Client) applyObject(gen uint64, obj protocol.Object) error {
	switch obj.ResponseType() {
	case protocol.TypeHello:
		c.adoptSessionID(gen, obj.String("session_id"))
	case protocol.TypeDevices:
		var frame devicesFrame
		if err := remarshal(obj, &frame); err != nil {
			return fmt.Errorf("session: devices frame: %w", err)
		}
		c.mu.Lock()
		if gen == c.generation {
			c.devices = frame.Devices
		}
		c.mu.Unlock()
		c.logger.Debug("device registry replaced", zap.Int("devices", len(frame.Devices)))
	case protocol.TypeSensor:
		var frame sensorFrame
		if err := remarshal(obj, &frame); err != nil {
			return fmt.Errorf("session: sensor frame: %w", err)
		}
		if frame.DeviceID == "" {
			return fmt.Errorf("session: sensor frame: %w: missing device_id", protocol.ErrDecode)
		}
		c.Dispatch(frame.DeviceID, protocol.SensorDatum{
			Timestamp:  frame.Timestamp,
			Value:      frame.Value,
			Unit:       frame.Unit,
			SensorType: frame.SensorType,
		})
	}
	return nil
}

func (c *Client) adoptSessionID(gen uint64, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	if gen == c.generation {
		c.sessionID = sessionID
	}
	c.mu.Unlock()
	c.logger.Info("hello acknowledged", zap.String("session_id", sessionID))
}

func (c *Client) handleAudio(gen uint64, frame []byte) {
	if len(frame) == 0 || !c.current(gen) {
		return
	}
	c.Emit(BusEvent{Name: EventAudio, Payload: frame})
}

func (c *Client) handleClose(gen uint64, err error) {
	if !c.teardown(gen) {
		return
	}
	_ = c.transport.Close()
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", protocol.ErrTransport, err))
	}
	c.logger.Warn("session connection lost", zap.Error(err))
	c.Emit(BusEvent{Name: EventDisconnected, Payload: err})
}

// remarshal converts a decoded object into a typed frame.
func remarshal(obj protocol.Object, dst any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrDecode, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrDecode, err)
	}
	return nil
}
