// Package gateway is a development gateway that speaks the baseline
// dialect over websocket. It answers hello, pushes the device registry and
// sensor readings, and acknowledges device commands.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/metrics"
	"github.com/saker-ai/devlink/internal/transport/framing"
	"github.com/saker-ai/devlink/pkg/codec"
	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
)

const writeWait = 10 * time.Second

// Handler upgrades client connections and serves them.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	source   session.DeviceSource
	metrics  *metrics.Metrics
	sessions map[string]*peer
	mu       sync.Mutex
}

type incomingMessage struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id,omitempty"`
	Version   int                       `json:"version,omitempty"`
	Features  []string                  `json:"features,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Commands  []protocol.ControlCommand `json:"commands,omitempty"`
	Audio     *protocol.AudioParams     `json:"audio_params,omitempty"`
}

type helloReply struct {
	Type        string                `json:"type"`
	SessionID   string                `json:"session_id"`
	Version     int                   `json:"version"`
	Transport   string                `json:"transport"`
	AudioParams *protocol.AudioParams `json:"audio_params,omitempty"`
}

type devicesReply struct {
	Type    string            `json:"type"`
	Devices []protocol.Device `json:"devices"`
}

type sensorReply struct {
	Type       string    `json:"type"`
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	SensorType string    `json:"sensor_type"`
}

type commandAck struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	CommandID string `json:"command_id"`
	DeviceID  string `json:"device_id"`
	Command   string `json:"command"`
}

type textReply struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	State     string `json:"state,omitempty"`
	Text      string `json:"text,omitempty"`
}

type peer struct {
	conn    *websocket.Conn
	sendMu  sync.Mutex
	logger  *zap.Logger
	handler *Handler
	decoder codec.Decoder
	id      string
	version int

	feedOnce sync.Once
}

// NewHandler returns a handler serving devices from source. source and m
// may be nil.
func NewHandler(logger *zap.Logger, source session.DeviceSource, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:   logger,
		source:   source,
		metrics:  m,
		sessions: make(map[string]*peer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Sessions reports the number of open connections.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Handle serves one client connection until it closes.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	version, _ := strconv.Atoi(r.Header.Get("Protocol-Version"))
	p := &peer{
		conn:    conn,
		logger:  h.logger,
		handler: h,
		decoder: codec.NewBaselineDecoder(),
		id:      uuid.NewString(),
		version: framing.NormalizeVersion(version),
	}
	p.logger = h.logger.With(zap.String("session_id", p.id))
	p.logger.Info("gateway session opened",
		zap.String("device_id", r.Header.Get("Device-Id")),
		zap.String("client_id", r.Header.Get("Client-Id")),
		zap.Int("protocol_version", p.version),
	)

	h.register(p)
	defer h.unregister(p)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info("gateway session closed")
			} else {
				p.logger.Warn("gateway read failed", zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			p.dispatch(ctx, data)
		case websocket.BinaryMessage:
			payload, kind, err := framing.Decode(p.version, data)
			if err != nil {
				p.logger.Debug("gateway bad binary frame", zap.Error(err))
				continue
			}
			if kind == framing.KindText {
				p.dispatch(ctx, payload)
				continue
			}
			p.logger.Debug("gateway audio frame ignored", zap.Int("bytes", len(payload)))
		}
	}
}

func (h *Handler) register(p *peer) {
	h.mu.Lock()
	h.sessions[p.id] = p
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
}

func (h *Handler) unregister(p *peer) {
	h.mu.Lock()
	delete(h.sessions, p.id)
	h.mu.Unlock()
	h.metrics.ConnectionClosed()
}

// closeAll sends a going-away close frame to every open connection and
// closes it. The read loops then unwind on their own.
func (h *Handler) closeAll() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.sessions))
	for _, p := range h.sessions {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.sendMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway shutdown"),
			time.Now().Add(time.Second))
		p.sendMu.Unlock()
		_ = p.conn.Close()
	}
}

type incomingHandler func(context.Context, incomingMessage)

// dispatch routes a frame through the baseline decoder, so an event_kind
// marker takes priority over the type field.
func (p *peer) dispatch(ctx context.Context, data []byte) {
	resp, err := p.decoder.Decode(string(data))
	if err != nil {
		p.logger.Debug("gateway undecodable frame", zap.Error(err))
		return
	}
	if ev, ok := resp.(protocol.Event); ok {
		p.onEvent(ev)
		return
	}

	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Debug("gateway bad json", zap.Error(err))
		return
	}
	handlers := map[string]incomingHandler{
		protocol.TypeHello:   p.onHello,
		protocol.TypeCommand: p.onCommand,
		protocol.TypeIm:      p.onText,
		protocol.TypeChat:    p.onText,
		protocol.TypeMcp:     p.onNoop,
	}
	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	p.logger.Debug("gateway unknown message type", zap.String("type", msg.Type))
}

func (p *peer) onEvent(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventListen:
		p.onListen(ev.Listen)
	case protocol.EventAbort:
		p.onAbort(ev.Abort)
	}
}

func (p *peer) onHello(ctx context.Context, msg incomingMessage) {
	p.sendJSON(helloReply{
		Type:        protocol.TypeHello,
		SessionID:   p.id,
		Version:     p.version,
		Transport:   "websocket",
		AudioParams: msg.Audio,
	})

	source := p.handler.source
	if source == nil {
		return
	}
	devices, err := source.Devices(ctx)
	if err != nil {
		p.logger.Warn("gateway device source failed", zap.Error(err))
		return
	}
	p.sendJSON(devicesReply{Type: protocol.TypeDevices, Devices: devices})

	if feed, ok := source.(session.Feed); ok {
		p.feedOnce.Do(func() { go p.runFeed(ctx, feed) })
	}
}

func (p *peer) runFeed(ctx context.Context, feed session.Feed) {
	err := feed.Run(ctx, func(deviceID string, datum protocol.SensorDatum) {
		p.sendJSON(sensorReply{
			Type:       protocol.TypeSensor,
			DeviceID:   deviceID,
			Timestamp:  datum.Timestamp,
			Value:      datum.Value,
			Unit:       datum.Unit,
			SensorType: datum.SensorType,
		})
		p.handler.metrics.ReadingPushed()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("gateway feed stopped", zap.Error(err))
	}
}

func (p *peer) onCommand(_ context.Context, msg incomingMessage) {
	for _, cmd := range msg.Commands {
		state := "ack"
		if err := cmd.Validate(); err != nil {
			state = "rejected"
		}
		p.handler.metrics.CommandReceived(cmd.Command)
		p.logger.Info("gateway command",
			zap.String("device_id", cmd.DeviceID),
			zap.String("command", cmd.Command),
			zap.String("state", state),
		)
		p.sendJSON(commandAck{
			Type:      protocol.TypeCommand,
			SessionID: p.id,
			State:     state,
			CommandID: uuid.NewString(),
			DeviceID:  cmd.DeviceID,
			Command:   cmd.Command,
		})
	}
}

// onText answers with a short tts exchange echoing the message.
func (p *peer) onText(_ context.Context, msg incomingMessage) {
	if msg.Message == "" {
		return
	}
	p.sendJSON(textReply{Type: protocol.TypeTts, SessionID: p.id, State: protocol.TtsStart})
	p.sendJSON(textReply{Type: protocol.TypeTts, SessionID: p.id, State: protocol.TtsSentenceStart, Text: msg.Message})
	p.sendBinary(framing.Pack(p.version, make([]byte, 8)))
	p.sendJSON(textReply{Type: protocol.TypeTts, SessionID: p.id, State: protocol.TtsStop})
}

func (p *peer) onListen(listen *protocol.ListenEvent) {
	if listen.State == protocol.ListenDetect && listen.Text != "" {
		p.sendJSON(textReply{Type: "stt", SessionID: p.id, Text: listen.Text})
	}
}

func (p *peer) onAbort(abort *protocol.AbortEvent) {
	p.logger.Info("gateway abort", zap.String("reason", abort.Reason))
	p.sendJSON(textReply{Type: protocol.TypeTts, SessionID: p.id, State: protocol.TtsStop})
}

func (p *peer) onNoop(context.Context, incomingMessage) {}

func (p *peer) sendJSON(v any) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(v); err != nil {
		p.logger.Debug("gateway write failed", zap.Error(err))
	}
}

func (p *peer) sendBinary(frame []byte) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		p.logger.Debug("gateway write failed", zap.Error(err))
	}
}
