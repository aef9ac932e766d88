// Package config provides YAML-based configuration loading for wadesk.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level wadesk configuration, loaded from wadesk.yaml.
type Config struct {
	DB      DBConfig      `yaml:"db"`
	Media   MediaConfig   `yaml:"media"`
	Requeue RequeueConfig `yaml:"requeue"`
	API     APIConfig     `yaml:"api"`
	Notify  NotifyConfig  `yaml:"notify"`
	Log     LogConfig     `yaml:"log"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MediaConfig controls the outbound media pipeline.
type MediaConfig struct {
	// PublicDir is the shared storage directory for uploads and
	// transcoded outputs.
	PublicDir string `yaml:"public_dir"`
	// FFmpeg is the encoder binary, default "ffmpeg".
	FFmpeg string `yaml:"ffmpeg"`
	// TranscodeTimeoutSeconds bounds a single encoder run.
	TranscodeTimeoutSeconds int `yaml:"transcode_timeout_seconds"`
	// MaxTranscodes bounds concurrent encoder subprocesses.
	MaxTranscodes int `yaml:"max_transcodes"`
	// SendTimeoutSeconds bounds a single transport send.
	SendTimeoutSeconds int `yaml:"send_timeout_seconds"`
}

// RequeueConfig controls the stuck-ticket scheduler.
type RequeueConfig struct {
	// Schedule is a 5-field cron expression, default every minute.
	Schedule string `yaml:"schedule"`
	// StaleSeconds is how long a pending unassigned ticket must sit idle
	// before it is moved to its company's default queue.
	StaleSeconds int `yaml:"stale_seconds"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig holds settings for the optional AMQP event mirror.
type NotifyConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TranscodeTimeout returns the encoder timeout as a duration.
func (m MediaConfig) TranscodeTimeout() time.Duration {
	return time.Duration(m.TranscodeTimeoutSeconds) * time.Second
}

// SendTimeout returns the transport send timeout as a duration.
func (m MediaConfig) SendTimeout() time.Duration {
	return time.Duration(m.SendTimeoutSeconds) * time.Second
}

// StaleThreshold returns the requeue staleness threshold as a duration.
func (r RequeueConfig) StaleThreshold() time.Duration {
	return time.Duration(r.StaleSeconds) * time.Second
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "wadesk"
	}
	if c.Media.PublicDir == "" {
		c.Media.PublicDir = "public"
	}
	if c.Media.FFmpeg == "" {
		c.Media.FFmpeg = "ffmpeg"
	}
	if c.Media.TranscodeTimeoutSeconds == 0 {
		c.Media.TranscodeTimeoutSeconds = 120
	}
	if c.Media.MaxTranscodes == 0 {
		c.Media.MaxTranscodes = 4
	}
	if c.Media.SendTimeoutSeconds == 0 {
		c.Media.SendTimeoutSeconds = 30
	}
	if c.Requeue.Schedule == "" {
		c.Requeue.Schedule = "* * * * *"
	}
	if c.Requeue.StaleSeconds == 0 {
		c.Requeue.StaleSeconds = 60
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Media.TranscodeTimeoutSeconds < 0 {
		errs = append(errs, "media.transcode_timeout_seconds must not be negative")
	}
	if c.Media.MaxTranscodes < 0 {
		errs = append(errs, "media.max_transcodes must not be negative")
	}
	if c.Requeue.StaleSeconds < 0 {
		errs = append(errs, "requeue.stale_seconds must not be negative")
	}
	if c.Notify.AMQPURL != "" && c.Notify.Exchange == "" {
		errs = append(errs, "notify.exchange is required when notify.amqp_url is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
