// Package config reads the YAML configuration shared by the counters
// server and the journal client.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/journal"
	"github.com/m-lab/counters/static"
)

// CountersConfig selects and configures the counters backend.
type CountersConfig struct {
	Cls     string        `yaml:"cls"`
	Host    string        `yaml:"host"`
	Prefix  string        `yaml:"prefix"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// JournalConfig configures the journal client.
type JournalConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Prefix       string        `yaml:"prefix"`
	GroupID      string        `yaml:"group_id"`
	ObjectTypes  []string      `yaml:"object_types"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	CountObjects bool          `yaml:"count_objects"`
}

// Config holds the complete configuration.
type Config struct {
	Counters      CountersConfig    `yaml:"counters"`
	Journal       JournalConfig     `yaml:"journal"`
	NetlocAliases map[string]string `yaml:"netloc_aliases"`
}

// Default returns the configuration used when no file is given: an
// in-memory backend.
func Default() *Config {
	return &Config{
		Counters: CountersConfig{Cls: counters.BackendMemory},
	}
}

// Parse reads the configuration file at path. Fields missing from the file
// keep their default value.
func Parse(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	if cfg.Counters.Cls == "" {
		return nil, fmt.Errorf("invalid configuration %s: missing counters.cls", path)
	}
	return cfg, nil
}

// Backend returns the constructor arguments of the counters backend.
func (c *Config) Backend() counters.Config {
	return counters.Config{
		Host:      c.Counters.Host,
		KeyPrefix: c.Counters.Prefix,
		URL:       c.Counters.URL,
		Timeout:   c.Counters.Timeout,
	}
}

// NewCounters builds the configured counters backend.
func (c *Config) NewCounters() (counters.Counters, error) {
	return counters.Get(c.Counters.Cls, c.Backend())
}

// Processor returns the batch processor options.
func (c *Config) Processor() journal.Options {
	return journal.Options{
		Netlocs:      journal.NewNetlocTable(c.NetlocAliases),
		CountObjects: c.Journal.CountObjects,
	}
}

// Client returns the journal client configuration.
func (c *Config) Client() journal.ClientConfig {
	j := c.Journal
	if j.Prefix == "" {
		j.Prefix = static.JournalPrefix
	}
	return journal.ClientConfig{
		Brokers:      j.Brokers,
		GroupID:      j.GroupID,
		Prefix:       j.Prefix,
		ObjectTypes:  j.ObjectTypes,
		BatchSize:    j.BatchSize,
		BatchTimeout: j.BatchTimeout,
	}
}
