package codec

import (
	"encoding/json"
	"fmt"

	"github.com/saker-ai/devlink/pkg/protocol"
)

const (
	transportWebSocket = "websocket"
	defaultVersion     = 1
)

type helloWire struct {
	Type        string               `json:"type"`
	Version     int                  `json:"version"`
	Features    []string             `json:"features"`
	Transport   string               `json:"transport"`
	AudioParams protocol.AudioParams `json:"audio_params"`
	Text        string               `json:"text,omitempty"`
	ChatContext any                  `json:"chat_context,omitempty"`
}

type rpcResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

type mcpWire struct {
	SessionID string      `json:"session_id"`
	Type      string      `json:"type"`
	Payload   rpcResponse `json:"payload"`
}

type imWire struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type eventWire struct {
	SessionID string             `json:"session_id"`
	Version   int                `json:"version"`
	Type      string             `json:"type"`
	EventKind protocol.EventKind `json:"event_kind"`
	Reason    string             `json:"reason,omitempty"`
	State     string             `json:"state,omitempty"`
	Mode      string             `json:"mode,omitempty"`
	Text      string             `json:"text,omitempty"`
}

type commandWire struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id"`
	Commands  []protocol.ControlCommand `json:"commands"`
}

type ttsWire struct {
	Type        string                `json:"type"`
	SessionID   string                `json:"session_id,omitempty"`
	State       string                `json:"state"`
	Text        string                `json:"text,omitempty"`
	AudioParams *protocol.AudioParams `json:"audio_params,omitempty"`
}

// remarshal converts an untyped object into a wire struct.
func remarshal(src map[string]any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrInvalidMessage, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrInvalidMessage, err)
	}
	return nil
}

func helloFromGeneric(g protocol.Generic) (protocol.Hello, error) {
	var w helloWire
	if err := remarshal(g, &w); err != nil {
		return protocol.Hello{}, err
	}
	return protocol.Hello{
		Version:     w.Version,
		Features:    w.Features,
		Transport:   w.Transport,
		AudioParams: w.AudioParams,
		Text:        w.Text,
		ChatContext: w.ChatContext,
	}, nil
}

func mcpFromGeneric(g protocol.Generic) (protocol.Mcp, json.RawMessage, error) {
	var w struct {
		SessionID string `json:"session_id"`
		Payload   struct {
			ID     any             `json:"id"`
			Result json.RawMessage `json:"result"`
		} `json:"payload"`
	}
	if err := remarshal(g, &w); err != nil {
		return protocol.Mcp{}, nil, err
	}
	return protocol.Mcp{SessionID: w.SessionID, ID: w.Payload.ID}, w.Payload.Result, nil
}

func imFromGeneric(g protocol.Generic) (protocol.ImMessage, error) {
	var w imWire
	if err := remarshal(g, &w); err != nil {
		return protocol.ImMessage{}, err
	}
	return protocol.ImMessage{SessionID: w.SessionID, Message: w.Message, Framing: w.Type}, nil
}

func commandFromGeneric(g protocol.Generic) (protocol.Command, error) {
	var w commandWire
	if err := remarshal(g, &w); err != nil {
		return protocol.Command{}, err
	}
	return protocol.Command{SessionID: w.SessionID, Commands: w.Commands}, nil
}

// eventFromWire rebuilds an Event from its flat wire form. The sub-payload
// is selected by kind and is never nil for abort and listen.
func eventFromWire(w eventWire) protocol.Event {
	ev := protocol.Event{
		SessionID: w.SessionID,
		Version:   w.Version,
		Type:      w.Type,
		Kind:      w.EventKind,
	}
	switch w.EventKind {
	case protocol.EventAbort:
		ev.Abort = &protocol.AbortEvent{Reason: w.Reason}
	case protocol.EventListen:
		ev.Listen = &protocol.ListenEvent{State: w.State, Mode: w.Mode, Text: w.Text}
	}
	return ev
}

func eventFromGeneric(g protocol.Generic) (protocol.Event, error) {
	var w eventWire
	if err := remarshal(g, &w); err != nil {
		return protocol.Event{}, err
	}
	return eventFromWire(w), nil
}
