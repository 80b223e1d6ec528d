package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/natsfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/opcua"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Feed kinds.
const (
	FeedLoopback = "loopback"
	FeedNATS     = "nats"
	FeedOPCUA    = "opcua"
)

type Config struct {
	DomainID int `yaml:"domain_id"`
	// SampleCount is the number of valid samples to wait for. Omitted means unbounded.
	SampleCount  uint64        `yaml:"sample_count"`
	Topic        string        `yaml:"topic"`
	Verbosity    int           `yaml:"verbosity"`
	WaitInterval time.Duration `yaml:"wait_interval"`

	Feed    FeedConfig    `yaml:"feed"`
	Metrics MetricsConfig `yaml:"metrics"`
	Record  RecordConfig  `yaml:"record"`
}

type FeedConfig struct {
	Kind     string          `yaml:"kind"`
	NATS     natsfeed.Config `yaml:"nats"`
	OPCUA    opcua.Config    `yaml:"opcua"`
	Loopback LoopbackConfig  `yaml:"loopback"`
}

type LoopbackConfig struct {
	Policy          ports.Policy  `yaml:"policy"`
	DemoWriter      bool          `yaml:"demo_writer"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	Color           string        `yaml:"color"`
}

// MetricsConfig enables the /metrics and /healthz endpoints when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// RecordConfig enables the Postgres recorder when ConnString is set.
type RecordConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		SampleCount: math.MaxUint64,
		Verbosity:   1,
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads path on top of Default.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Topic == "" {
		c.Topic = "Oblong"
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = 5 * time.Second
	}
	if c.Feed.Kind == "" {
		c.Feed.Kind = FeedLoopback
	}

	lb := &c.Feed.Loopback
	if lb.Policy.MaxQueueLen == 0 {
		lb.Policy.MaxQueueLen = 10_000
	}
	if lb.Policy.IdleSleep == 0 {
		lb.Policy.IdleSleep = 5 * time.Millisecond
	}
	if lb.Policy.OnQueueFull == "" {
		lb.Policy.OnQueueFull = "block"
	}
	if lb.PublishInterval <= 0 {
		lb.PublishInterval = 100 * time.Millisecond
	}
	if lb.Color == "" {
		lb.Color = "BLUE"
	}

	if c.Record.Table == "" {
		c.Record.Table = "shapes"
	}

	c.Feed.NATS.ApplyDefaults()
	c.Feed.OPCUA.ApplyDefaults()
}

// Validate checks the settings of the selected feed only.
func (c *Config) Validate() error {
	if c.DomainID < 0 {
		return fmt.Errorf("domain_id %d must not be negative", c.DomainID)
	}
	if c.Verbosity < 0 || c.Verbosity > 3 {
		return fmt.Errorf("verbosity %d out of range 0-3", c.Verbosity)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}

	switch c.Feed.Kind {
	case FeedLoopback:
		switch c.Feed.Loopback.Policy.OnQueueFull {
		case "block", "drop":
		default:
			return fmt.Errorf("feed.loopback.policy.on_queue_full %q must be block or drop", c.Feed.Loopback.Policy.OnQueueFull)
		}
	case FeedNATS:
		if err := c.Feed.NATS.Validate(); err != nil {
			return fmt.Errorf("nats config: %w", err)
		}
	case FeedOPCUA:
		if err := c.Feed.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("feed.kind %q must be one of %s, %s, %s", c.Feed.Kind, FeedLoopback, FeedNATS, FeedOPCUA)
	}
	return nil
}
