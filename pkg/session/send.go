package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/session/fsm"
	"github.com/saker-ai/devlink/pkg/protocol"
)

const defaultAbortReason = "user_interrupt"

// SendCommand validates cmd and sends it to the gateway. It fails with
// protocol.ErrNotConnected before anything is encoded when the session is
// not connected. A zero Timestamp is set to the current time.
func (c *Client) SendCommand(ctx context.Context, cmd protocol.ControlCommand) (err error) {
	if !c.machine.Is(fsm.StateConnected) {
		return protocol.ErrNotConnected
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}

	ctx, span := c.tracer.Start(ctx, "session.SendCommand",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("devlink.device_id", cmd.DeviceID),
			attribute.String("devlink.command", cmd.Command),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = c.send(ctx, protocol.Command{
		SessionID: c.SessionID(),
		Commands:  []protocol.ControlCommand{cmd},
	})
	if err == nil {
		c.logger.Debug("command sent",
			zap.String("device_id", cmd.DeviceID),
			zap.String("command", cmd.Command),
		)
	}
	return err
}

// SendText sends a text message on the session.
func (c *Client) SendText(ctx context.Context, text string) error {
	if !c.machine.Is(fsm.StateConnected) {
		return protocol.ErrNotConnected
	}
	return c.send(ctx, protocol.ImMessage{SessionID: c.SessionID(), Message: text})
}

// SendListen announces a listen state change ("start", "stop" or
// "detect") using the configured listen mode. text is only meaningful
// with "detect".
func (c *Client) SendListen(ctx context.Context, state, text string) error {
	if !c.machine.Is(fsm.StateConnected) {
		return protocol.ErrNotConnected
	}
	return c.send(ctx, protocol.Event{
		SessionID: c.SessionID(),
		Version:   c.cfg.ProtocolVersion,
		Type:      string(protocol.EventListen),
		Kind:      protocol.EventListen,
		Listen: &protocol.ListenEvent{
			State: state,
			Mode:  string(c.machine.Mode()),
			Text:  text,
		},
	})
}

// Abort interrupts the current gateway response.
func (c *Client) Abort(ctx context.Context, reason string) error {
	if !c.machine.Is(fsm.StateConnected) {
		return protocol.ErrNotConnected
	}
	if reason == "" {
		reason = defaultAbortReason
	}
	return c.send(ctx, protocol.Event{
		SessionID: c.SessionID(),
		Version:   c.cfg.ProtocolVersion,
		Type:      string(protocol.EventAbort),
		Kind:      protocol.EventAbort,
		Abort:     &protocol.AbortEvent{Reason: reason},
	})
}

// SendMCPResult answers the tool call id with result. A nil result sends
// the legacy success body.
func (c *Client) SendMCPResult(ctx context.Context, id any, result *mcp.CallToolResult) error {
	if !c.machine.Is(fsm.StateConnected) {
		return protocol.ErrNotConnected
	}
	return c.send(ctx, protocol.Mcp{SessionID: c.SessionID(), ID: id, Result: result})
}

// SetListenMode changes the mode announced by SendListen.
func (c *Client) SetListenMode(mode string) {
	c.machine.SetMode(mode)
}

func (c *Client) sendHello(ctx context.Context) error {
	return c.send(ctx, protocol.Hello{
		Version:     c.cfg.ProtocolVersion,
		Features:    c.cfg.Features,
		AudioParams: c.cfg.AudioParams,
	})
}

func (c *Client) send(ctx context.Context, req protocol.Request) error {
	text, err := c.encoder.Encode(req)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", req.RequestType(), err)
	}
	if err := c.transport.Send(ctx, text); err != nil {
		return fmt.Errorf("%w: send %s: %w", protocol.ErrTransport, req.RequestType(), err)
	}
	c.recorder.MessageSent(req.RequestType())
	return nil
}
