// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for stagehand.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting the "5s" form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the default persistent data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	Gateway   GatewayConfig   `yaml:"gateway"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Downloads DownloadsConfig `yaml:"downloads"`
	TakeLog   TakeLogConfig   `yaml:"takelog"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// NotifyConfig configures webhook delivery of watchdog events. An empty
// URL disables delivery.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	Secret     string `yaml:"secret,omitempty"` // optional HMAC-SHA256 key
}

// GatewayConfig configures the operator HTTP surface.
type GatewayConfig struct {
	Bind         string   `yaml:"bind"`
	ReadTimeout  Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty"`
}

// WatchdogConfig configures process watching.
type WatchdogConfig struct {
	Tasks []WatchTaskConfig `yaml:"tasks"`
}

// WatchTaskConfig configures one watched process.
type WatchTaskConfig struct {
	Name          string   `yaml:"name,omitempty"` // defaults to Process
	Process       string   `yaml:"process"`
	Interval      Duration `yaml:"interval,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty"`
	KillOnTimeout bool     `yaml:"kill_on_timeout,omitempty"`
}

// DownloadsConfig configures artifact downloads and their retention.
type DownloadsConfig struct {
	Dir           string   `yaml:"dir,omitempty"` // defaults under the data dir
	ChunkSize     int      `yaml:"chunk_size,omitempty"`
	Retention     Duration `yaml:"retention,omitempty"`      // default 168h
	PurgeSchedule string   `yaml:"purge_schedule,omitempty"` // 5-field cron, default "0 3 * * *"
}

// TakeLogConfig configures the take log database and its retention.
type TakeLogConfig struct {
	Path          string   `yaml:"path,omitempty"` // defaults under the data dir
	Retention     Duration `yaml:"retention,omitempty"`      // default 2160h (90 days)
	PurgeSchedule string   `yaml:"purge_schedule,omitempty"` // default "30 3 * * *"
}

// TelemetryConfig configures the OTLP trace exporter. An empty endpoint
// disables tracing.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"` // host:port of an OTLP/HTTP collector
	Insecure bool   `yaml:"insecure,omitempty"`
}

// Defaults fills zero values with sensible defaults.
func (c *Config) Defaults() {
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = "127.0.0.1:8990"
	}
	if c.Gateway.ReadTimeout <= 0 {
		c.Gateway.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Gateway.WriteTimeout <= 0 {
		c.Gateway.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Downloads.ChunkSize <= 0 {
		c.Downloads.ChunkSize = 8192
	}
	if c.Downloads.Retention <= 0 {
		c.Downloads.Retention = Duration(7 * 24 * time.Hour)
	}
	if c.Downloads.PurgeSchedule == "" {
		c.Downloads.PurgeSchedule = "0 3 * * *"
	}
	if c.TakeLog.Retention <= 0 {
		c.TakeLog.Retention = Duration(90 * 24 * time.Hour)
	}
	if c.TakeLog.PurgeSchedule == "" {
		c.TakeLog.PurgeSchedule = "30 3 * * *"
	}
}
