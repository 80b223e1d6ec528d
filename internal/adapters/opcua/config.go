package opcua

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Shape fields a node can be mapped to.
const (
	FieldColor     = "color"
	FieldX         = "x"
	FieldY         = "y"
	FieldShapeSize = "shapesize"
	FieldFillKind  = "fillkind"
	FieldAngle     = "angle"
)

var shapeFields = []string{FieldColor, FieldX, FieldY, FieldShapeSize, FieldFillKind, FieldAngle}

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	// Color is the instance key used until a color node reports a value.
	Color string       `yaml:"color"`
	Nodes []NodeConfig `yaml:"nodes"`
}

// NodeConfig maps a monitored node onto a shape field.
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
	Field  string `yaml:"field"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Shapes Subscriber"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.Color == "" {
		c.Color = "ORANGE"
	}
	for i := range c.Nodes {
		c.Nodes[i].Field = strings.ToLower(c.Nodes[i].Field)
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	for _, n := range c.Nodes {
		if n.NodeID == "" {
			return errors.New("node_id is required for every node")
		}
		if !knownField(n.Field) {
			return fmt.Errorf("node %q: unknown field %q", n.NodeID, n.Field)
		}
	}
	return nil
}

// nodesFor returns the configured nodes, or one node per shape field named
// ns=<domain>;s=<topic>.<field> when none are configured.
func (c *Config) nodesFor(domainID int, topic string) []NodeConfig {
	if len(c.Nodes) > 0 {
		return c.Nodes
	}
	nodes := make([]NodeConfig, len(shapeFields))
	for i, f := range shapeFields {
		nodes[i] = NodeConfig{
			NodeID: fmt.Sprintf("ns=%d;s=%s.%s", domainID, topic, f),
			Field:  f,
		}
	}
	return nodes
}

func knownField(f string) bool {
	for _, known := range shapeFields {
		if f == known {
			return true
		}
	}
	return false
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
