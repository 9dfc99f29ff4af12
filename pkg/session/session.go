// Package session implements the client side of a gateway connection: the
// connection lifecycle, the device registry, per-device subscriptions,
// command dispatch and an event bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/session/fsm"
	"github.com/saker-ai/devlink/internal/transport/framing"
	"github.com/saker-ai/devlink/pkg/codec"
	"github.com/saker-ai/devlink/pkg/protocol"
)

const tracerName = "github.com/saker-ai/devlink/pkg/session"

// Client is one logical session with a gateway. Create it with New and
// share it by pointer.
type Client struct {
	cfg       Config
	transport Transport
	source    DeviceSource
	registry  *codec.Registry
	encoder   codec.Encoder
	decoder   codec.Decoder
	logger    *zap.Logger
	recorder  Recorder
	tracer    trace.Tracer
	machine   *fsm.Machine

	mu            sync.Mutex
	sessionID     string
	devices       []protocol.Device
	subs          map[string][]subscriber
	nextHandle    Subscription
	handlers      map[string][]Handler
	errorHandlers []ErrorHandler
	generation    uint64
	stopFeed      context.CancelFunc
}

// New builds a session over transport. It fails with
// protocol.ErrUnsupportedDialect when the dialect has no codecs.
func New(cfg Config, transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("session: transport is required")
	}
	c := &Client{
		transport: transport,
		registry:  codec.Default,
		logger:    zap.NewNop(),
		recorder:  nopRecorder{},
		tracer:    otel.Tracer(tracerName),
		machine:   fsm.New(),
		subs:      make(map[string][]subscriber),
		handlers:  make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg.Dialect = protocol.ParseDialect(string(cfg.Dialect))
	cfg.ProtocolVersion = framing.NormalizeVersion(cfg.ProtocolVersion)
	c.cfg = cfg
	c.machine.SetMode(cfg.ListenMode)

	encoder, err := c.registry.NewEncoder(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	decoder, err := c.registry.NewDecoder(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	c.encoder = encoder
	c.decoder = decoder
	c.logger = c.logger.With(zap.String("dialect", cfg.Dialect.String()))
	return c, nil
}

// State returns the connection state.
func (c *Client) State() fsm.State {
	return c.machine.State()
}

// SessionID returns the current session id. It is a local id until the
// gateway assigns one in its hello reply, and empty while disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect dials the transport, loads the device registry and announces the
// session with a hello. On failure the session is left disconnected and the
// error is returned; there is no retry.
func (c *Client) Connect(ctx context.Context) (err error) {
	if err := c.machine.BeginConnect(); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}
	c.recorder.StateChanged(string(fsm.StateConnecting))

	ctx, span := c.tracer.Start(ctx, "session.Connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("devlink.dialect", c.cfg.Dialect.String())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	if err := c.transport.Dial(ctx, c.inbound(gen)); err != nil {
		c.abortConnect(gen)
		return fmt.Errorf("%w: dial: %w", protocol.ErrTransport, err)
	}
	if err := ctx.Err(); err != nil {
		c.abortConnect(gen)
		return err
	}

	var devices []protocol.Device
	if c.source != nil {
		devices, err = c.source.Devices(ctx)
		if err != nil {
			c.abortConnect(gen)
			return fmt.Errorf("session: load devices: %w", err)
		}
	}

	sessionID := uuid.NewString()
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.abortConnect(gen)
		return fmt.Errorf("%w: connection lost during connect", protocol.ErrTransport)
	}
	c.sessionID = sessionID
	c.devices = slices.Clone(devices)
	c.mu.Unlock()

	if err := c.sendHello(ctx); err != nil {
		c.abortConnect(gen)
		return err
	}
	if err := c.machine.Connected(); err != nil {
		c.abortConnect(gen)
		return fmt.Errorf("%w: connection lost during connect", protocol.ErrTransport)
	}
	c.recorder.StateChanged(string(fsm.StateConnected))
	span.SetAttributes(attribute.String("devlink.session_id", sessionID))

	if feed, ok := c.source.(Feed); ok {
		c.startFeed(gen, feed)
	}

	c.logger.Info("session connected",
		zap.String("session_id", sessionID),
		zap.Int("devices", len(devices)),
		zap.Int("protocol_version", c.cfg.ProtocolVersion),
	)
	c.Emit(BusEvent{Name: EventConnected, Payload: sessionID})
	return nil
}

// Disconnect closes the transport and clears the device registry and the
// subscription table. Calling it while disconnected does nothing.
func (c *Client) Disconnect() error {
	if c.machine.Is(fsm.StateDisconnected) {
		return nil
	}
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	if !c.teardown(gen) {
		return nil
	}
	err := c.transport.Close()
	c.logger.Info("session disconnected")
	c.Emit(BusEvent{Name: EventDisconnected, Payload: ErrClosed})
	if err != nil {
		return fmt.Errorf("%w: close: %w", protocol.ErrTransport, err)
	}
	return nil
}

// Devices returns a snapshot of the device registry.
func (c *Client) Devices() ([]protocol.Device, error) {
	if !c.machine.Is(fsm.StateConnected) {
		return nil, protocol.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.devices), nil
}

// abortConnect undoes a failed connect of generation gen. When the
// connection was already torn down from the transport side, state written
// since then is cleared too, unless a newer Connect owns it.
func (c *Client) abortConnect(gen uint64) {
	if !c.teardown(gen) {
		c.mu.Lock()
		if c.generation == gen+1 && c.machine.Is(fsm.StateDisconnected) {
			c.sessionID = ""
			c.devices = nil
			clear(c.subs)
		}
		c.mu.Unlock()
	}
	_ = c.transport.Close()
}

// teardown resets the session state owned by connection gen. It reports
// false when gen is stale or the session was already disconnected.
func (c *Client) teardown(gen uint64) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	prev := c.machine.Disconnect()
	if prev == fsm.StateDisconnected {
		c.mu.Unlock()
		return false
	}
	c.generation++
	c.sessionID = ""
	c.devices = nil
	clear(c.subs)
	stop := c.stopFeed
	c.stopFeed = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.recorder.StateChanged(string(fsm.StateDisconnected))
	return true
}

func (c *Client) startFeed(gen uint64, feed Feed) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		cancel()
		return
	}
	c.stopFeed = cancel
	c.mu.Unlock()
	go func() {
		if err := feed.Run(ctx, func(deviceID string, datum protocol.SensorDatum) {
			c.Dispatch(deviceID, datum)
		}); err != nil && !errors.Is(err, context.Canceled) {
			c.reportError(fmt.Errorf("session: device feed: %w", err))
		}
	}()
}
