package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"RELAY_"`
	Relay      RelayConfig      `yaml:"relay" envPrefix:"RELAY_"`
	ChangeFeed ChangeFeedConfig `yaml:"change_feed"`
	Notifier   NotifierConfig   `yaml:"notifier" envPrefix:"NOTIFY_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Tracing    TracingConfig    `yaml:"tracing" envPrefix:"TRACING_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Client     ClientConfig     `yaml:"client"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	Host            string        `yaml:"host" env:"HOST"`
	Path            string        `yaml:"path" env:"PATH"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type RelayConfig struct {
	// SendBuffer is the per-connection outbound queue length. A full queue
	// drops the delivery for that connection only.
	SendBuffer   int           `yaml:"send_buffer" env:"SEND_BUFFER"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	MaxMessage   int64         `yaml:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`
	// PingInterval must be shorter than PongWait or quiet peers are dropped.
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	PongWait     time.Duration `yaml:"pong_wait" env:"PONG_WAIT"`
}

type ChangeFeedConfig struct {
	Enabled     bool   `yaml:"enabled" env:"CHANGE_FEED_ENABLED"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	Channel     string `yaml:"channel" env:"CHANGE_FEED_CHANNEL"`
	Schema      string `yaml:"schema" env:"CHANGE_FEED_SCHEMA"`
	Table       string `yaml:"table" env:"CHANGE_FEED_TABLE"`
}

type NotifierConfig struct {
	Desktop       bool          `yaml:"desktop" env:"DESKTOP"`
	Sound         bool          `yaml:"sound" env:"SOUND"`
	Icon          string        `yaml:"icon" env:"ICON"`
	BeepFrequency float64       `yaml:"beep_frequency" env:"BEEP_FREQUENCY"`
	BeepDuration  time.Duration `yaml:"beep_duration" env:"BEEP_DURATION"`
}

type MetricsConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Port    int           `yaml:"port" env:"PORT"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName    string  `yaml:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string  `yaml:"service_version" env:"SERVICE_VERSION"`
	Endpoint       string  `yaml:"endpoint" env:"ENDPOINT"`
	SampleRate     float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	File  string `yaml:"file" env:"FILE"`
}

type ClientConfig struct {
	URL string `yaml:"url" env:"RELAY_URL"`
	// InitialOrders is how many stored orders the dashboard shows on start.
	InitialOrders int `yaml:"initial_orders" env:"INITIAL_ORDERS"`
	// MetricsPort serves the dashboard's notifier and change feed metrics.
	// Zero disables it.
	MetricsPort int `yaml:"metrics_port" env:"DASH_METRICS_PORT"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			Host:            "0.0.0.0",
			Path:            "/api/socket",
			ShutdownTimeout: 5 * time.Second,
		},
		Relay: RelayConfig{
			SendBuffer:   64,
			WriteTimeout: 10 * time.Second,
			MaxMessage:   64 << 10,
			PingInterval: 54 * time.Second,
			PongWait:     60 * time.Second,
		},
		ChangeFeed: ChangeFeedConfig{
			Enabled: true,
			Channel: "orders",
			Schema:  "public",
			Table:   "orders",
		},
		Notifier: NotifierConfig{
			Desktop:       true,
			Sound:         true,
			BeepFrequency: 880,
			BeepDuration:  200 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Timeout: 30 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName:    "order-relay",
			ServiceVersion: "1.0.0",
			Endpoint:       "localhost:4318",
			SampleRate:     1.0,
		},
		Log: LogConfig{
			Level: "info",
			File:  "order-dash.log",
		},
		Client: ClientConfig{
			URL:           "ws://127.0.0.1:3001/api/socket",
			InitialOrders: 50,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = defaultConfig()
		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Addr is the host:port the relay listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
