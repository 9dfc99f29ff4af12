package codec

import (
	"fmt"
	"maps"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// EncodeFunc builds the wire payload for a nominal request type.
type EncodeFunc func(req protocol.Request) (any, error)

// EventEncodeFunc builds the wire payload for one event kind.
type EventEncodeFunc func(ev protocol.Event) (any, error)

// EncoderTable maps nominal types and event kinds to handlers.
type EncoderTable struct {
	Types  map[string]EncodeFunc
	Events map[protocol.EventKind]EventEncodeFunc
}

// With returns a copy of t where every handler present in overrides
// replaces the one in t.
func (t EncoderTable) With(overrides EncoderTable) EncoderTable {
	merged := EncoderTable{
		Types:  maps.Clone(t.Types),
		Events: maps.Clone(t.Events),
	}
	if merged.Types == nil {
		merged.Types = map[string]EncodeFunc{}
	}
	if merged.Events == nil {
		merged.Events = map[protocol.EventKind]EventEncodeFunc{}
	}
	maps.Copy(merged.Types, overrides.Types)
	maps.Copy(merged.Events, overrides.Events)
	return merged
}

// BaselineEncoderTable returns a fresh copy of the baseline handlers.
func BaselineEncoderTable() EncoderTable {
	return EncoderTable{
		Types: map[string]EncodeFunc{
			protocol.TypeHello:   encodeHello,
			protocol.TypeMcp:     encodeMcp,
			protocol.TypeIm:      encodeIm,
			protocol.TypeChat:    encodeIm,
			protocol.TypeCommand: encodeCommand,
		},
		Events: map[protocol.EventKind]EventEncodeFunc{
			protocol.EventAbort:  encodeAbort,
			protocol.EventListen: encodeListen,
		},
	}
}

// DialectEncoder encodes requests with a dialect handler table.
type DialectEncoder struct {
	dialect protocol.Dialect
	table   EncoderTable
}

// NewDialectEncoder builds an encoder for dialect from table.
func NewDialectEncoder(dialect protocol.Dialect, table EncoderTable) *DialectEncoder {
	return &DialectEncoder{dialect: dialect, table: table.With(EncoderTable{})}
}

// NewBaselineEncoder returns the baseline dialect encoder.
func NewBaselineEncoder() *DialectEncoder {
	return NewDialectEncoder(protocol.DialectBaseline, BaselineEncoderTable())
}

func (e *DialectEncoder) Dialect() protocol.Dialect { return e.dialect }

// Encode resolves the branch for req and serializes it.
func (e *DialectEncoder) Encode(req protocol.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: nil request", protocol.ErrInvalidMessage)
	}
	p := requestShape(req)

	var (
		payload any
		err     error
	)
	switch resolve(p) {
	case branchEvent:
		payload, err = e.encodeEvent(req, p)
	default:
		handler, ok := e.table.Types[p.typ]
		if !ok {
			return "", fmt.Errorf("%w: %s has no encoder for type %q", protocol.ErrUnsupportedDialect, e.dialect, p.typ)
		}
		payload, err = handler(req)
	}
	if err != nil {
		return "", err
	}
	return marshalText(payload)
}

func (e *DialectEncoder) encodeEvent(req protocol.Request, p shape) (any, error) {
	var ev protocol.Event
	switch r := req.(type) {
	case protocol.Event:
		ev = r
	case protocol.Generic:
		converted, err := eventFromGeneric(r)
		if err != nil {
			return nil, err
		}
		ev = converted
	default:
		return nil, fmt.Errorf("%w: %T carries no event", protocol.ErrInvalidMessage, req)
	}
	handler, ok := e.table.Events[p.eventKind]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no encoder for event kind %q", protocol.ErrUnsupportedDialect, e.dialect, p.eventKind)
	}
	return handler(ev)
}

func encodeHello(req protocol.Request) (any, error) {
	var hello protocol.Hello
	switch r := req.(type) {
	case protocol.Hello:
		hello = r
	case protocol.Generic:
		converted, err := helloFromGeneric(r)
		if err != nil {
			return nil, err
		}
		hello = converted
	default:
		return nil, fmt.Errorf("%w: %T is not a hello", protocol.ErrInvalidMessage, req)
	}
	features := hello.Features
	if features == nil {
		features = []string{}
	}
	return helloWire{
		Type:        protocol.TypeHello,
		Version:     versionOrDefault(hello.Version),
		Features:    features,
		Transport:   transportWebSocket,
		AudioParams: hello.AudioParams,
		Text:        hello.Text,
		ChatContext: hello.ChatContext,
	}, nil
}

// legacyMcpResult is the body older gateways expect when a tool call
// carries no explicit result.
func legacyMcpResult() *mcp.CallToolResult {
	return mcp.NewToolResultText("true")
}

func encodeMcp(req protocol.Request) (any, error) {
	var (
		msg    protocol.Mcp
		result any
	)
	switch r := req.(type) {
	case protocol.Mcp:
		msg = r
		if r.Result != nil {
			result = r.Result
		}
	case protocol.Generic:
		converted, raw, err := mcpFromGeneric(r)
		if err != nil {
			return nil, err
		}
		msg = converted
		if len(raw) > 0 && string(raw) != "null" {
			result = raw
		}
	default:
		return nil, fmt.Errorf("%w: %T is not an mcp message", protocol.ErrInvalidMessage, req)
	}
	if err := requireSession(msg.SessionID, protocol.TypeMcp); err != nil {
		return nil, err
	}
	if result == nil {
		result = legacyMcpResult()
	}
	return mcpWire{
		SessionID: msg.SessionID,
		Type:      protocol.TypeMcp,
		Payload: rpcResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      msg.ID,
			Result:  result,
		},
	}, nil
}

func encodeIm(req protocol.Request) (any, error) {
	var msg protocol.ImMessage
	switch r := req.(type) {
	case protocol.ImMessage:
		msg = r
	case protocol.Generic:
		converted, err := imFromGeneric(r)
		if err != nil {
			return nil, err
		}
		msg = converted
	default:
		return nil, fmt.Errorf("%w: %T is not an im message", protocol.ErrInvalidMessage, req)
	}
	if err := requireSession(msg.SessionID, protocol.TypeIm); err != nil {
		return nil, err
	}
	return imWire{Type: protocol.TypeIm, SessionID: msg.SessionID, Message: msg.Message}, nil
}

func encodeCommand(req protocol.Request) (any, error) {
	var msg protocol.Command
	switch r := req.(type) {
	case protocol.Command:
		msg = r
	case protocol.Generic:
		converted, err := commandFromGeneric(r)
		if err != nil {
			return nil, err
		}
		msg = converted
	default:
		return nil, fmt.Errorf("%w: %T is not a command", protocol.ErrInvalidMessage, req)
	}
	if err := requireSession(msg.SessionID, protocol.TypeCommand); err != nil {
		return nil, err
	}
	if len(msg.Commands) == 0 {
		return nil, fmt.Errorf("%w: command frame without commands", protocol.ErrInvalidCommand)
	}
	for _, cmd := range msg.Commands {
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
	}
	return commandWire{Type: protocol.TypeCommand, SessionID: msg.SessionID, Commands: msg.Commands}, nil
}

func encodeAbort(ev protocol.Event) (any, error) {
	w, err := eventHeader(ev)
	if err != nil {
		return nil, err
	}
	if ev.Abort != nil {
		w.Reason = ev.Abort.Reason
	}
	return w, nil
}

func encodeListen(ev protocol.Event) (any, error) {
	w, err := eventHeader(ev)
	if err != nil {
		return nil, err
	}
	if ev.Listen == nil || strings.TrimSpace(ev.Listen.State) == "" {
		return nil, fmt.Errorf("%w: listen event without state", protocol.ErrInvalidMessage)
	}
	w.State = ev.Listen.State
	w.Mode = ev.Listen.Mode
	w.Text = ev.Listen.Text
	return w, nil
}

func eventHeader(ev protocol.Event) (eventWire, error) {
	if err := requireSession(ev.SessionID, string(ev.Kind)); err != nil {
		return eventWire{}, err
	}
	return eventWire{
		SessionID: ev.SessionID,
		Version:   versionOrDefault(ev.Version),
		Type:      ev.RequestType(),
		EventKind: ev.Kind,
	}, nil
}

func requireSession(sessionID string, msgType string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: %s", protocol.ErrMissingSessionID, msgType)
	}
	return nil
}

func versionOrDefault(version int) int {
	if version <= 0 {
		return defaultVersion
	}
	return version
}
