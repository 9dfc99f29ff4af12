// Package config loads the devlink configuration from the embedded
// defaults, an optional YAML file and DEVLINK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/devlink/config"
	"github.com/saker-ai/devlink/internal/logger"
	"github.com/saker-ai/devlink/internal/transport/framing"
	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
	"github.com/saker-ai/devlink/pkg/transport/websocket"
)

const (
	envPrefix      = "devlink"
	configName     = "devlink"
	defaultPort    = 8090
	defaultWSPath  = "/gateway-ws"
	deviceIDPrefix = "devlink-device-"
	clientIDPrefix = "devlink-client-"
)

// GatewayConfig describes the gateway a client session connects to.
type GatewayConfig struct {
	URL             string          `mapstructure:"url"`
	Dialect         string          `mapstructure:"dialect"`
	ProtocolVersion int             `mapstructure:"protocol_version"`
	DeviceID        string          `mapstructure:"device_id"`
	ClientID        string          `mapstructure:"client_id"`
	AccessToken     string          `mapstructure:"access_token"`
	Features        []string        `mapstructure:"features"`
	Discovery       DiscoveryConfig `mapstructure:"discovery"`
	Reconnect       ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig tunes the reconnect backoff of long running commands.
type ReconnectConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// DiscoveryConfig controls mDNS lookup of the gateway URL.
type DiscoveryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Service string        `mapstructure:"service"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AudioConfig is announced in the hello message.
type AudioConfig struct {
	Format        string `mapstructure:"format"`
	SampleRate    int    `mapstructure:"sample_rate"`
	Channels      int    `mapstructure:"channels"`
	FrameDuration int    `mapstructure:"frame_duration"`
}

// DevicesConfig selects the device source.
type DevicesConfig struct {
	Fixture      string        `mapstructure:"fixture"`
	MockCount    int           `mapstructure:"mock_count"`
	FeedInterval time.Duration `mapstructure:"feed_interval"`
	Seed         uint64        `mapstructure:"seed"`
}

// ServerConfig configures the development gateway.
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Advertise bool   `mapstructure:"advertise"`
	Instance  string `mapstructure:"instance"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the full configuration.
type Config struct {
	ConfigFile string        `mapstructure:"-"`
	Gateway    GatewayConfig `mapstructure:"gateway"`
	Audio      AudioConfig   `mapstructure:"audio"`
	ListenMode string        `mapstructure:"listen_mode"`
	Devices    DevicesConfig `mapstructure:"devices"`
	Server     ServerConfig  `mapstructure:"server"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Log        logger.Config `mapstructure:"log"`
}

// Load reads the configuration. An empty configPath looks for devlink.yaml
// in the working directory and carries on without it when absent.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := strings.TrimSpace(configPath)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	dialect := protocol.ParseDialect(cfg.Gateway.Dialect)
	cfg.Gateway.Dialect = dialect.String()
	cfg.Gateway.ProtocolVersion = framing.NormalizeVersion(cfg.Gateway.ProtocolVersion)

	suffix := uuid.NewString()[:8]
	cfg.Gateway.DeviceID = fallbackID(cfg.Gateway.DeviceID, deviceIDPrefix+suffix)
	cfg.Gateway.ClientID = fallbackID(cfg.Gateway.ClientID, clientIDPrefix+suffix)

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = defaultWSPath
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		cfg.Server.Path = "/" + cfg.Server.Path
	}
	if cfg.Devices.MockCount < 0 {
		return fmt.Errorf("devices.mock_count must not be negative, got %d", cfg.Devices.MockCount)
	}
	return nil
}

func fallbackID(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

// Addr is the listen address of the development gateway.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SessionConfig maps the gateway and audio sections to session settings.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		Dialect:         protocol.Dialect(c.Gateway.Dialect),
		ProtocolVersion: c.Gateway.ProtocolVersion,
		Features:        c.Gateway.Features,
		AudioParams: protocol.AudioParams{
			Format:        c.Audio.Format,
			SampleRate:    c.Audio.SampleRate,
			Channels:      c.Audio.Channels,
			FrameDuration: c.Audio.FrameDuration,
		},
		ListenMode: c.ListenMode,
	}
}

// TransportConfig maps the gateway section to websocket settings. url
// overrides the configured URL when not empty.
func (c Config) TransportConfig(url string) websocket.Config {
	if url == "" {
		url = c.Gateway.URL
	}
	return websocket.Config{
		URL:             url,
		ProtocolVersion: c.Gateway.ProtocolVersion,
		DeviceID:        c.Gateway.DeviceID,
		ClientID:        c.Gateway.ClientID,
		AccessToken:     c.Gateway.AccessToken,
	}
}
