package session

import (
	"context"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// Inbound receives what a transport reads from the gateway. Callbacks run on
// the transport's read goroutine.
type Inbound struct {
	// OnText is called for every JSON text frame.
	OnText func(text string)
	// OnAudio is called for every raw audio frame.
	OnAudio func(frame []byte)
	// OnClose is called once when the read side stops. err is nil when the
	// transport was closed locally.
	OnClose func(err error)
}

// Transport is a persistent message-oriented connection to a gateway.
type Transport interface {
	// Dial establishes the connection. Cancelling ctx aborts the attempt
	// and releases any partially opened socket.
	Dial(ctx context.Context, in Inbound) error
	// Send writes one text frame.
	Send(ctx context.Context, text string) error
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// DeviceSource supplies the device registry loaded on connect.
type DeviceSource interface {
	Devices(ctx context.Context) ([]protocol.Device, error)
}

// EmitFunc delivers one reading to the subscribers of deviceID.
type EmitFunc func(deviceID string, datum protocol.SensorDatum)

// Feed is implemented by device sources that also produce readings. Run
// blocks until ctx is cancelled.
type Feed interface {
	Run(ctx context.Context, emit EmitFunc) error
}

// Recorder observes session activity. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	MessageSent(msgType string)
	MessageReceived(msgType string)
	StateChanged(state string)
	DeliveryFailed(deviceID string)
}

type nopRecorder struct{}

func (nopRecorder) MessageSent(string)     {}
func (nopRecorder) MessageReceived(string) {}
func (nopRecorder) StateChanged(string)    {}
func (nopRecorder) DeliveryFailed(string)  {}
