// Package websocket implements session.Transport over gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/transport/framing"
	"github.com/saker-ai/devlink/pkg/session"
)

const (
	controlWriteTimeout = 5 * time.Second
	defaultHandshake    = 10 * time.Second
)

// ErrNotDialed is returned by Send before a successful Dial.
var ErrNotDialed = errors.New("websocket: connection not ready")

// Config describes the gateway endpoint and the identity headers sent with
// the upgrade request.
type Config struct {
	URL              string
	ProtocolVersion  int
	DeviceID         string
	ClientID         string
	AccessToken      string
	HandshakeTimeout time.Duration
}

// Transport is a single websocket connection. It can be dialed again after
// it is closed.
type Transport struct {
	cfg    Config
	logger *zap.Logger
	dialer websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	writeMu sync.Mutex
}

var _ session.Transport = (*Transport)(nil)

// New returns a transport for cfg.
func New(cfg Config, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ProtocolVersion = framing.NormalizeVersion(cfg.ProtocolVersion)
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshake
	}
	return &Transport{
		cfg:    cfg,
		logger: logger,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial opens the connection and starts the read loop.
func (t *Transport) Dial(ctx context.Context, in session.Inbound) error {
	if t.cfg.URL == "" {
		return errors.New("websocket: gateway url is empty")
	}
	headers := http.Header{}
	headers.Set("Protocol-Version", strconv.Itoa(t.cfg.ProtocolVersion))
	if t.cfg.ClientID != "" {
		headers.Set("Client-Id", t.cfg.ClientID)
	}
	if t.cfg.DeviceID != "" {
		headers.Set("Device-Id", t.cfg.DeviceID)
	}
	if t.cfg.AccessToken != "" {
		headers.Set("Authorization", "Bearer "+t.cfg.AccessToken)
	}

	t.logger.Info("gateway connecting",
		zap.String("gateway_url", t.cfg.URL),
		zap.String("device_id", t.cfg.DeviceID),
		zap.String("client_id", t.cfg.ClientID),
	)
	conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, headers)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
	})

	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = conn
	t.closing = false
	t.mu.Unlock()

	go t.readLoop(conn, in)
	return nil
}

// Send writes text as one text frame.
func (t *Transport) Send(ctx context.Context, text string) error {
	return t.write(ctx, websocket.TextMessage, []byte(text))
}

// SendAudio writes one audio frame using the negotiated binary framing.
func (t *Transport) SendAudio(ctx context.Context, payload []byte) error {
	return t.write(ctx, websocket.BinaryMessage, framing.Pack(t.cfg.ProtocolVersion, payload))
}

// Close closes the connection. The read loop then reports a nil error.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closing = true
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(controlWriteTimeout))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) write(ctx context.Context, messageType int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotDialed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func (t *Transport) readLoop(conn *websocket.Conn, in session.Inbound) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			local := t.closing || t.conn != conn
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			_ = conn.Close()
			if local || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			if in.OnClose != nil {
				in.OnClose(err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if in.OnText != nil {
				in.OnText(string(data))
			}
		case websocket.BinaryMessage:
			payload, kind, decodeErr := framing.Decode(t.cfg.ProtocolVersion, data)
			if decodeErr != nil {
				t.logger.Warn("binary frame dropped", zap.Error(decodeErr))
				continue
			}
			if len(payload) == 0 {
				continue
			}
			if kind == framing.KindText {
				if in.OnText != nil {
					in.OnText(string(payload))
				}
				continue
			}
			if in.OnAudio != nil {
				in.OnAudio(payload)
			}
		}
	}
}

// String describes the endpoint for logs.
func (t *Transport) String() string {
	return fmt.Sprintf("websocket(%s v%d)", t.cfg.URL, t.cfg.ProtocolVersion)
}
