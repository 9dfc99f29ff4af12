package protocol

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Request types as they appear in the "type" field on the wire.
const (
	TypeHello   = "hello"
	TypeMcp     = "mcp"
	TypeIm      = "im"
	TypeChat    = "chat"
	TypeCommand = "iot"
	TypeTts     = "tts"
	TypeDevices = "devices"
	TypeSensor  = "sensor"
)

// Request is an outbound message. The concrete type is one of Hello, Mcp,
// ImMessage, Event, Command or Generic.
type Request interface {
	RequestType() string
}

// AudioParams describes the audio stream negotiated during hello.
type AudioParams struct {
	Format        string `json:"format,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	FrameDuration int    `json:"frame_duration,omitempty"`
}

// Hello opens a session and negotiates capabilities. Transport is ignored by
// the baseline encoder, which always announces "websocket".
type Hello struct {
	Version     int
	Features    []string
	Transport   string
	AudioParams AudioParams
	Text        string
	ChatContext any
}

func (Hello) RequestType() string { return TypeHello }

// Mcp carries the result of a tool call back to the gateway. ID is the
// JSON-RPC id of the call being answered.
type Mcp struct {
	SessionID string
	ID        any
	Result    *mcp.CallToolResult
}

func (Mcp) RequestType() string { return TypeMcp }

// ImMessage is a text message on the session. Framing records whether the
// caller addressed it as "im" or "chat"; both are sent as "im".
type ImMessage struct {
	SessionID string
	Message   string
	Framing   string
}

func (m ImMessage) RequestType() string {
	if m.Framing == TypeChat {
		return TypeChat
	}
	return TypeIm
}

// Command is the wire form of one or more control commands.
type Command struct {
	SessionID string
	Commands  []ControlCommand
}

func (Command) RequestType() string { return TypeCommand }

// Generic is an untyped request. It is routed by the same discriminator
// rules as the typed variants.
type Generic map[string]any

func (g Generic) RequestType() string {
	value, _ := g["type"].(string)
	return value
}
