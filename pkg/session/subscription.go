package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// DeviceCallback receives readings for a subscribed device. A returned
// error is reported on the error bus.
type DeviceCallback func(datum protocol.SensorDatum) error

// Subscription identifies one registered callback. The zero value is never
// issued.
type Subscription uint64

type subscriber struct {
	handle   Subscription
	callback DeviceCallback
}

// Subscribe registers cb for readings of deviceID. Callbacks of one device
// are invoked in registration order.
func (c *Client) Subscribe(deviceID string, cb DeviceCallback) Subscription {
	if cb == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextHandle++
	handle := c.nextHandle
	c.subs[deviceID] = append(c.subs[deviceID], subscriber{handle: handle, callback: cb})
	c.logger.Debug("device subscribed",
		zap.String("device_id", deviceID),
		zap.Uint64("subscription", uint64(handle)),
	)
	return handle
}

// Unsubscribe removes sub from deviceID. Unknown handles are ignored.
func (c *Client) Unsubscribe(deviceID string, sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[deviceID]
	for i, s := range list {
		if s.handle != sub {
			continue
		}
		rest := make([]subscriber, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(c.subs, deviceID)
		} else {
			c.subs[deviceID] = rest
		}
		return
	}
}

// Dispatch delivers datum to every subscriber of deviceID in registration
// order and returns how many callbacks completed without error. Failing or
// panicking callbacks are reported on the error bus.
func (c *Client) Dispatch(deviceID string, datum protocol.SensorDatum) int {
	c.mu.Lock()
	list := append([]subscriber(nil), c.subs[deviceID]...)
	c.mu.Unlock()

	delivered := 0
	for _, s := range list {
		if err := invokeCallback(s.callback, datum); err != nil {
			c.recorder.DeliveryFailed(deviceID)
			c.reportError(fmt.Errorf("session: subscriber %d of device %s: %w", s.handle, deviceID, err))
			continue
		}
		delivered++
	}
	return delivered
}

func invokeCallback(cb DeviceCallback, datum protocol.SensorDatum) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb(datum)
}
