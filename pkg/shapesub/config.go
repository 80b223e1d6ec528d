package shapesub

import (
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/natsfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/opcua"
	"github.com/ajmhs/training-listeners-read-write/internal/app/config"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// FeedConfig selects and configures the feed.
	FeedConfig = config.FeedConfig
	// LoopbackConfig configures the in-process feed and its demo writer.
	LoopbackConfig = config.LoopbackConfig
	// Policy controls reader queue thresholds on the in-process feed.
	Policy = ports.Policy
	// NATSConfig holds connection and lease details for the NATS feed.
	NATSConfig = natsfeed.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a monitored node onto a shape field.
	OPCUANodeConfig = opcua.NodeConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// RecordConfig configures the Postgres recorder.
	RecordConfig = config.RecordConfig
)

// Feed kinds accepted in FeedConfig.Kind.
const (
	FeedLoopback = config.FeedLoopback
	FeedNATS     = config.FeedNATS
	FeedOPCUA    = config.FeedOPCUA
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return config.Default()
}
