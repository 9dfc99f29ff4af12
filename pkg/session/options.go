package session

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/pkg/codec"
	"github.com/saker-ai/devlink/pkg/protocol"
)

// Config holds the values announced to the gateway.
type Config struct {
	Dialect         protocol.Dialect
	ProtocolVersion int
	Features        []string
	AudioParams     protocol.AudioParams
	ListenMode      string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry selects the codec registry used to build the dialect codecs.
func WithRegistry(registry *codec.Registry) Option {
	return func(c *Client) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithDeviceSource sets the collaborator the registry is loaded from.
func WithDeviceSource(source DeviceSource) Option {
	return func(c *Client) {
		c.source = source
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithTracer sets the tracer used for connect and command spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}
