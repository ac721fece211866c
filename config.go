package dsched

import (
	"fmt"

	schedconfig "github.com/oscore/dsched/config"
)

// Config is the Service-level configuration: the scheduler's topology
// settings plus the identity used when tracing is enabled. The zero value
// is not useful on its own — callers start from DefaultConfig.
type Config struct {
	Topology       *schedconfig.Config `json:"topology" yaml:"topology"`
	ServiceName    string              `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string              `json:"serviceVersion" yaml:"serviceVersion"`
}

// DefaultConfig returns a Config populated with the scheduler's default
// topology and a generic service identity.
func DefaultConfig() *Config {
	return &Config{
		Topology:       schedconfig.DefaultConfig(),
		ServiceName:    "dsched",
		ServiceVersion: "0.1.0",
	}
}

// Validate returns an error describing the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if c.Topology == nil {
		return fmt.Errorf("topology config is required")
	}
	return c.Topology.Validate()
}
