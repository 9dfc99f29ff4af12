package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/saker-ai/devlink/pkg/protocol"
)

func decodeJSON(t *testing.T, text string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("output %q is not a json object: %v", text, err)
	}
	return out
}

func TestEncodeHelloForcesWebSocketTransport(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Hello{
		Version:   1,
		Features:  []string{"mcp", "aec"},
		Transport: "udp",
		AudioParams: protocol.AudioParams{
			Format:        "opus",
			SampleRate:    16000,
			Channels:      1,
			FrameDuration: 60,
		},
	})
	if err != nil {
		t.Fatalf("Encode(hello) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["type"] != "hello" {
		t.Fatalf("type=%v, want hello", got["type"])
	}
	if got["transport"] != "websocket" {
		t.Fatalf("transport=%v, want websocket", got["transport"])
	}
	if got["version"] != float64(1) {
		t.Fatalf("version=%v, want 1", got["version"])
	}
	features, _ := got["features"].([]any)
	if len(features) != 2 || features[0] != "mcp" || features[1] != "aec" {
		t.Fatalf("features=%v, want [mcp aec]", got["features"])
	}
	audio, _ := got["audio_params"].(map[string]any)
	if audio["format"] != "opus" || audio["sample_rate"] != float64(16000) || audio["frame_duration"] != float64(60) {
		t.Fatalf("audio_params=%v", got["audio_params"])
	}
	if _, ok := got["text"]; ok {
		t.Fatalf("text present without being supplied: %v", got)
	}
	if _, ok := got["chat_context"]; ok {
		t.Fatalf("chat_context present without being supplied: %v", got)
	}
}

func TestEncodeHelloOptionalFields(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Hello{
		Text:        "good morning",
		ChatContext: map[string]any{"topic": "weather"},
	})
	if err != nil {
		t.Fatalf("Encode(hello) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["text"] != "good morning" {
		t.Fatalf("text=%v, want %q", got["text"], "good morning")
	}
	chat, _ := got["chat_context"].(map[string]any)
	if chat["topic"] != "weather" {
		t.Fatalf("chat_context=%v", got["chat_context"])
	}
	if got["version"] != float64(1) {
		t.Fatalf("version=%v, want default 1", got["version"])
	}
	if features, ok := got["features"].([]any); !ok || len(features) != 0 {
		t.Fatalf("features=%v, want empty list", got["features"])
	}
}

func TestEncodeMcpCarriesResult(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Mcp{
		SessionID: "sess-1",
		ID:        7,
		Result:    mcp.NewToolResultText("light turned on"),
	})
	if err != nil {
		t.Fatalf("Encode(mcp) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["type"] != "mcp" || got["session_id"] != "sess-1" {
		t.Fatalf("envelope=%v", got)
	}
	payload, _ := got["payload"].(map[string]any)
	if payload["jsonrpc"] != "2.0" {
		t.Fatalf("jsonrpc=%v, want 2.0", payload["jsonrpc"])
	}
	if payload["id"] != float64(7) {
		t.Fatalf("id=%v, want 7", payload["id"])
	}
	if got := firstContentText(t, payload); got != "light turned on" {
		t.Fatalf("result text=%q, want %q", got, "light turned on")
	}
}

func TestEncodeMcpWithoutResultUsesLegacyBody(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Mcp{SessionID: "sess-1", ID: "call-1"})
	if err != nil {
		t.Fatalf("Encode(mcp) returned error: %v", err)
	}
	payload, _ := decodeJSON(t, text)["payload"].(map[string]any)
	if got := firstContentText(t, payload); got != "true" {
		t.Fatalf("result text=%q, want %q", got, "true")
	}
}

func TestEncodeMcpErrorResult(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Mcp{SessionID: "sess-1", ID: 3, Result: mcp.NewToolResultError("device offline")})
	if err != nil {
		t.Fatalf("Encode(mcp) returned error: %v", err)
	}
	payload, _ := decodeJSON(t, text)["payload"].(map[string]any)
	result, _ := payload["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("isError=%v, want true", result["isError"])
	}
	if got := firstContentText(t, payload); got != "device offline" {
		t.Fatalf("result text=%q, want %q", got, "device offline")
	}
}

func firstContentText(t *testing.T, payload map[string]any) string {
	t.Helper()
	result, _ := payload["result"].(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) == 0 {
		t.Fatalf("result has no content: %v", payload["result"])
	}
	item, _ := content[0].(map[string]any)
	text, _ := item["text"].(string)
	return text
}

func TestEncodeMultiplexedRequiresSession(t *testing.T) {
	enc := NewBaselineEncoder()
	requests := []protocol.Request{
		protocol.Mcp{ID: 1},
		protocol.ImMessage{Message: "hi"},
		protocol.Event{Kind: protocol.EventAbort},
		protocol.Command{Commands: []protocol.ControlCommand{{DeviceID: "d1", Command: "on"}}},
	}
	for _, req := range requests {
		if _, err := enc.Encode(req); !errors.Is(err, protocol.ErrMissingSessionID) {
			t.Fatalf("Encode(%T) err=%v, want ErrMissingSessionID", req, err)
		}
	}
}

func TestEncodeImAndChatFraming(t *testing.T) {
	enc := NewBaselineEncoder()
	for _, framing := range []string{"", "im", "chat"} {
		text, err := enc.Encode(protocol.ImMessage{SessionID: "s", Message: "hello there", Framing: framing})
		if err != nil {
			t.Fatalf("Encode(im framing=%q) returned error: %v", framing, err)
		}
		got := decodeJSON(t, text)
		if got["type"] != "im" || got["session_id"] != "s" || got["message"] != "hello there" {
			t.Fatalf("framing=%q output=%v", framing, got)
		}
	}
}

func TestEncodeAbortEvent(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Event{
		SessionID: "s",
		Kind:      protocol.EventAbort,
		Abort:     &protocol.AbortEvent{Reason: "wake_word_detected"},
	})
	if err != nil {
		t.Fatalf("Encode(abort) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["event_kind"] != "abort" || got["type"] != "abort" {
		t.Fatalf("output=%v", got)
	}
	if got["version"] != float64(1) {
		t.Fatalf("version=%v, want 1", got["version"])
	}
	if got["reason"] != "wake_word_detected" {
		t.Fatalf("reason=%v", got["reason"])
	}
}

func TestEncodeListenReadsListenPayload(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Event{
		SessionID: "s",
		Version:   3,
		Kind:      protocol.EventListen,
		Listen:    &protocol.ListenEvent{State: protocol.ListenStart, Mode: "manual"},
		Abort:     &protocol.AbortEvent{Reason: "stale"},
	})
	if err != nil {
		t.Fatalf("Encode(listen) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["state"] != "start" || got["mode"] != "manual" {
		t.Fatalf("output=%v", got)
	}
	if _, ok := got["reason"]; ok {
		t.Fatalf("listen output carries abort reason: %v", got)
	}
	if got["version"] != float64(3) {
		t.Fatalf("version=%v, want 3", got["version"])
	}
}

func TestEncodeListenWithoutState(t *testing.T) {
	enc := NewBaselineEncoder()
	_, err := enc.Encode(protocol.Event{SessionID: "s", Kind: protocol.EventListen})
	if !errors.Is(err, protocol.ErrInvalidMessage) {
		t.Fatalf("err=%v, want ErrInvalidMessage", err)
	}
}

func TestEncodeStructuralMarkerBeatsType(t *testing.T) {
	enc := NewBaselineEncoder()
	tests := []struct {
		name     string
		req      protocol.Generic
		wantType string
	}{
		{
			name:     "unrelated type",
			req:      protocol.Generic{"type": "hello", "event_kind": "abort", "session_id": "s", "reason": "user"},
			wantType: "hello",
		},
		{
			name:     "missing type",
			req:      protocol.Generic{"event_kind": "listen", "session_id": "s", "state": "detect", "text": "hi"},
			wantType: "listen",
		},
		{
			name:     "unknown type",
			req:      protocol.Generic{"type": "whatever", "event_kind": "abort", "session_id": "s"},
			wantType: "whatever",
		},
	}
	for _, tt := range tests {
		text, err := enc.Encode(tt.req)
		if err != nil {
			t.Fatalf("%s: Encode returned error: %v", tt.name, err)
		}
		got := decodeJSON(t, text)
		if got["event_kind"] != tt.req["event_kind"] {
			t.Fatalf("%s: event_kind=%v, want %v", tt.name, got["event_kind"], tt.req["event_kind"])
		}
		if got["type"] != tt.wantType {
			t.Fatalf("%s: type=%v, want %v", tt.name, got["type"], tt.wantType)
		}
		if _, ok := got["transport"]; ok {
			t.Fatalf("%s: routed to hello encoding: %v", tt.name, got)
		}
	}
}

func TestEncodeUnsupportedBranches(t *testing.T) {
	enc := NewBaselineEncoder()
	requests := []protocol.Request{
		protocol.Generic{"type": "goodbye"},
		protocol.Generic{},
		protocol.Event{SessionID: "s", Kind: "wake"},
		protocol.Generic{"type": "listen", "event_kind": "wake", "session_id": "s"},
	}
	for _, req := range requests {
		if _, err := enc.Encode(req); !errors.Is(err, protocol.ErrUnsupportedDialect) {
			t.Fatalf("Encode(%v) err=%v, want ErrUnsupportedDialect", req, err)
		}
	}
}

func TestEncodeCommand(t *testing.T) {
	enc := NewBaselineEncoder()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	text, err := enc.Encode(protocol.Command{
		SessionID: "s",
		Commands: []protocol.ControlCommand{{
			DeviceID:  "thermostat-1",
			Command:   "set_target",
			Params:    map[string]any{"celsius": 21.5},
			Timestamp: ts,
		}},
	})
	if err != nil {
		t.Fatalf("Encode(command) returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["type"] != "iot" {
		t.Fatalf("type=%v, want iot", got["type"])
	}
	commands, _ := got["commands"].([]any)
	if len(commands) != 1 {
		t.Fatalf("commands=%v", got["commands"])
	}
	cmd, _ := commands[0].(map[string]any)
	if cmd["device_id"] != "thermostat-1" || cmd["command"] != "set_target" {
		t.Fatalf("command=%v", cmd)
	}
	if cmd["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("timestamp=%v", cmd["timestamp"])
	}
}

func TestEncodeCommandValidates(t *testing.T) {
	enc := NewBaselineEncoder()
	tests := []protocol.Command{
		{SessionID: "s"},
		{SessionID: "s", Commands: []protocol.ControlCommand{{Command: "on"}}},
		{SessionID: "s", Commands: []protocol.ControlCommand{{DeviceID: "d1"}}},
	}
	for _, req := range tests {
		if _, err := enc.Encode(req); !errors.Is(err, protocol.ErrInvalidCommand) {
			t.Fatalf("Encode(%+v) err=%v, want ErrInvalidCommand", req, err)
		}
	}
}

func TestEncodeOutputTypeMatchesRequest(t *testing.T) {
	enc := NewBaselineEncoder()
	tests := []struct {
		req  protocol.Request
		want string
	}{
		{req: protocol.Hello{}, want: "hello"},
		{req: protocol.Mcp{SessionID: "s"}, want: "mcp"},
		{req: protocol.ImMessage{SessionID: "s"}, want: "im"},
		{req: protocol.Event{SessionID: "s", Kind: protocol.EventAbort}, want: "abort"},
		{req: protocol.Event{SessionID: "s", Type: "listen", Kind: protocol.EventListen, Listen: &protocol.ListenEvent{State: "stop"}}, want: "listen"},
		{req: protocol.Command{SessionID: "s", Commands: []protocol.ControlCommand{{DeviceID: "d", Command: "c"}}}, want: "iot"},
		{req: protocol.Generic{"type": "hello", "transport": "tcp"}, want: "hello"},
	}
	for _, tt := range tests {
		text, err := enc.Encode(tt.req)
		if err != nil {
			t.Fatalf("Encode(%T) returned error: %v", tt.req, err)
		}
		got := decodeJSON(t, text)
		if got["type"] != tt.want {
			t.Fatalf("Encode(%T) type=%v, want %v", tt.req, got["type"], tt.want)
		}
	}
}

func TestGenericHelloStillForcesTransport(t *testing.T) {
	enc := NewBaselineEncoder()
	text, err := enc.Encode(protocol.Generic{"type": "hello", "version": 2, "transport": "mqtt"})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["transport"] != "websocket" || got["version"] != float64(2) {
		t.Fatalf("output=%v", got)
	}
}

func TestExtendedEncoderInheritsBaseline(t *testing.T) {
	baseline := NewBaselineEncoder()
	extended := NewExtendedEncoder()
	if extended.Dialect() != protocol.DialectExtended {
		t.Fatalf("dialect=%s, want %s", extended.Dialect(), protocol.DialectExtended)
	}
	requests := []protocol.Request{
		protocol.Hello{Version: 1, Features: []string{"mcp"}},
		protocol.Mcp{SessionID: "s", ID: 1, Result: mcp.NewToolResultText("ok")},
		protocol.ImMessage{SessionID: "s", Message: "m"},
		protocol.Event{SessionID: "s", Kind: protocol.EventAbort},
		protocol.Event{SessionID: "s", Kind: protocol.EventListen, Listen: &protocol.ListenEvent{State: "start"}},
	}
	for _, req := range requests {
		want, err := baseline.Encode(req)
		if err != nil {
			t.Fatalf("baseline Encode(%T) returned error: %v", req, err)
		}
		got, err := extended.Encode(req)
		if err != nil {
			t.Fatalf("extended Encode(%T) returned error: %v", req, err)
		}
		if got != want {
			t.Fatalf("extended Encode(%T)=%s, want %s", req, got, want)
		}
	}
}

func TestBaseEncoderAddsType(t *testing.T) {
	text, err := NewBaseEncoder().Encode(protocol.Hello{Version: 1})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got := decodeJSON(t, text)
	if got["type"] != "hello" {
		t.Fatalf("type=%v, want hello", got["type"])
	}

	text, err = NewBaseEncoder().Encode(protocol.Generic{"type": "custom", "n": 1})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got = decodeJSON(t, text)
	if got["type"] != "custom" || got["n"] != float64(1) {
		t.Fatalf("output=%v", got)
	}
}
