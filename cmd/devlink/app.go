package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/devlink/internal/config"
	"github.com/saker-ai/devlink/internal/devices"
	"github.com/saker-ai/devlink/internal/discovery"
	applogger "github.com/saker-ai/devlink/internal/logger"
	"github.com/saker-ai/devlink/internal/metrics"
	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
	"github.com/saker-ai/devlink/pkg/transport/websocket"
)

type app struct {
	cfg     appconfig.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func loadApp(configPath string) (*app, error) {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Debug("devlink config loaded",
		zap.String("config_file", cfg.ConfigFile),
		zap.String("dialect", cfg.Gateway.Dialect),
		zap.Int("protocol_version", cfg.Gateway.ProtocolVersion),
	)
	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
	}
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// deviceSource returns the fixture source when one is configured, else the
// mock generator.
func (a *app) deviceSource() (session.DeviceSource, error) {
	if a.cfg.Devices.Fixture != "" {
		fixture, err := devices.LoadFixture(a.cfg.Devices.Fixture)
		if err != nil {
			return nil, err
		}
		return fixture, nil
	}
	return devices.NewMock(a.cfg.Devices.MockCount, a.cfg.Devices.FeedInterval, a.cfg.Devices.Seed), nil
}

// gatewayURL prefers override, then the configured URL, then mDNS.
func (a *app) gatewayURL(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if a.cfg.Gateway.URL != "" {
		return a.cfg.Gateway.URL, nil
	}
	if !a.cfg.Gateway.Discovery.Enabled {
		return "", errors.New("no gateway url configured; set gateway.url, pass --url or enable discovery")
	}
	gw, err := discovery.Lookup(ctx, a.cfg.Gateway.Discovery.Service, a.cfg.Gateway.Discovery.Timeout, a.logger)
	if err != nil {
		return "", err
	}
	return gw.URL(), nil
}

// newClient builds a session for the resolved gateway url.
func (a *app) newClient(ctx context.Context, override string) (*session.Client, error) {
	url, err := a.gatewayURL(ctx, override)
	if err != nil {
		return nil, err
	}
	transport := websocket.New(a.cfg.TransportConfig(url), a.logger)
	opts := []session.Option{session.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, session.WithRecorder(a.metrics))
	}
	client, err := session.New(a.cfg.SessionConfig(), transport, opts...)
	if err != nil {
		return nil, err
	}
	client.OnError(func(err error) {
		a.logger.Warn("session error", zap.Error(err))
	})
	return client, nil
}

// connect dials the gateway and waits up to wait for its device registry.
func (a *app) connect(ctx context.Context, override string, wait time.Duration) (*session.Client, error) {
	client, err := a.newClient(ctx, override)
	if err != nil {
		return nil, err
	}
	ready := make(chan struct{}, 1)
	client.On(protocol.TypeDevices, func(session.BusEvent) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(wait):
	case <-ctx.Done():
		_ = client.Disconnect()
		return nil, ctx.Err()
	}
	return client, nil
}
