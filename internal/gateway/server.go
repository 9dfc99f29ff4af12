package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/discovery"
	"github.com/saker-ai/devlink/internal/metrics"
	"github.com/saker-ai/devlink/pkg/session"
)

// Options configures a Server.
type Options struct {
	Addr      string
	Path      string
	Dialect   string
	Advertise bool
	Instance  string
}

// Server runs the gateway over plain HTTP.
type Server struct {
	opts    Options
	logger  *zap.Logger
	handler *Handler
	server  *http.Server

	mu         sync.Mutex
	listener   net.Listener
	advertiser *discovery.Advertiser
}

// New builds a server. source and m may be nil.
func New(opts Options, source session.DeviceSource, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Path == "" {
		opts.Path = "/gateway-ws"
	}
	handler := NewHandler(logger, source, m)
	return &Server{
		opts:    opts,
		logger:  logger,
		handler: handler,
		server: &http.Server{
			Addr:    opts.Addr,
			Handler: NewRouter(opts.Path, handler, m, logger),
		},
	}
}

// Run listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.opts.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(s.opts.Instance, port, s.opts.Path, s.opts.Dialect, s.logger)
		if err != nil {
			s.logger.Warn("gateway advertisement failed", zap.Error(err))
		} else {
			s.mu.Lock()
			s.advertiser = adv
			s.mu.Unlock()
		}
	}

	s.logger.Info("starting gateway", zap.String("addr", ln.Addr().String()), zap.String("path", s.opts.Path))
	return ignoreServerClosed(s.server.Serve(ln))
}

// Addr is the bound address once Run is listening, else the configured one.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Sessions reports the number of open client connections.
func (s *Server) Sessions() int {
	return s.handler.Sessions()
}

// Shutdown stops advertising, drains the HTTP server and closes the open
// websocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.mu.Lock()
	adv := s.advertiser
	s.advertiser = nil
	s.mu.Unlock()
	if adv != nil {
		if err := adv.Shutdown(); err != nil {
			s.logger.Warn("gateway advertisement shutdown failed", zap.Error(err))
		}
	}
	err := ignoreServerClosed(s.server.Shutdown(ctx))
	s.handler.closeAll()
	return err
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
