// Package config loads the scheduler's topology and tuning parameters from
// YAML, grounded on the teacher's root Config/DefaultConfig/Validate
// pattern (config.go) and its afs-backed YAML loading in
// service/dao/workflow/service.go.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"

	"github.com/oscore/dsched/config/cpuset"
)

// Config is the scheduler's serialisable configuration.
type Config struct {
	// Cpus is a cpuset.Parse-compatible range spec, e.g. "0-3,8,12-15".
	Cpus string `json:"cpus" yaml:"cpus"`

	// SliceMillis is the fixed per-task time-slice constant (spec.md §3).
	SliceMillis int `json:"sliceMillis" yaml:"sliceMillis"`

	// QueueDepth bounds each CPU's simulated channel buffer
	// (service/channel/memory.Config.QueueBuffer).
	QueueDepth int `json:"queueDepth" yaml:"queueDepth"`

	// DumpIntervalMillis gates the verbose per-CPU state dump; zero
	// disables dumping.
	DumpIntervalMillis int `json:"dumpIntervalMillis" yaml:"dumpIntervalMillis"`

	// DumpURL is the afs destination snapshots are uploaded to, one object
	// per CPU (e.g. "file:///var/log/dsched/dump" or an S3/GCS prefix).
	// Empty disables persistence and the dump is only logged.
	DumpURL string `json:"dumpURL" yaml:"dumpURL"`

	// Affinity optionally pins or excludes specific tasks up front; entries
	// keyed by gtid are installed into runtime/policy.Policy at startup.
	Affinity []AffinityRule `json:"affinity" yaml:"affinity"`
}

// AffinityRule mirrors runtime/policy.Affinity in a serialisable shape.
type AffinityRule struct {
	Gtid      string `json:"gtid" yaml:"gtid"`
	Mode      string `json:"mode" yaml:"mode"`
	AllowList string `json:"allowList" yaml:"allowList"`
	BlockList string `json:"blockList" yaml:"blockList"`
}

// DefaultConfig returns a Config populated with the same defaults the
// scheduler previously hard-coded.
func DefaultConfig() *Config {
	return &Config{
		Cpus:               "0-3",
		SliceMillis:        5,
		QueueDepth:         4096,
		DumpIntervalMillis: 1000,
	}
}

// Validate returns an error describing the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Cpus == "" {
		return fmt.Errorf("cpus must not be empty")
	}
	if _, err := cpuset.Parse(c.Cpus); err != nil {
		return fmt.Errorf("invalid cpus %q: %w", c.Cpus, err)
	}
	if c.SliceMillis <= 0 {
		return fmt.Errorf("sliceMillis must be > 0")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queueDepth must be > 0")
	}
	for i, rule := range c.Affinity {
		switch rule.Mode {
		case "auto", "pinned", "excluded":
		default:
			return fmt.Errorf("affinity[%d]: unknown mode %q", i, rule.Mode)
		}
	}
	return nil
}

// Slice returns the configured time slice as a time.Duration.
func (c *Config) Slice() time.Duration {
	return time.Duration(c.SliceMillis) * time.Millisecond
}

// DumpInterval returns the configured dump cadence as a time.Duration.
func (c *Config) DumpInterval() time.Duration {
	return time.Duration(c.DumpIntervalMillis) * time.Millisecond
}

// Cpuset parses Cpus into a concrete CPU id list.
func (c *Config) Cpuset() ([]int, error) {
	return cpuset.Parse(c.Cpus)
}

// Load reads and decodes a Config from a YAML document at url, using afs so
// the location may be local, S3, GCS, etc. (spec.md §6 topology config,
// grounded on the teacher's *fs.Service.DownloadWithURL usage).
func Load(ctx context.Context, url string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, url, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download config %s: %w", url, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", url, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
