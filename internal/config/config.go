// Package config loads runtime configuration for the quell CLI: config
// file, then QUELL_ environment overrides, then defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/quellstream/quell/internal/script"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "quell.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "quell.yml"

// Default configuration values.
const (
	DefaultCodec     = "json"
	DefaultQueueSize = 64
)

// Config is the full runtime configuration.
type Config struct {
	Script    ScriptConfig    `koanf:"script" yaml:"script"`
	Connector ConnectorConfig `koanf:"connector" yaml:"connector"`
	State     StateConfig     `koanf:"state" yaml:"state"`
}

// ScriptConfig tunes the interpreter.
type ScriptConfig struct {
	RecursionLimit uint32 `koanf:"recursion_limit" yaml:"recursion_limit"`
}

// ConnectorConfig describes the one connector the CLI runs.
type ConnectorConfig struct {
	Alias         string   `koanf:"alias" yaml:"alias"`
	Codec         string   `koanf:"codec" yaml:"codec"`
	Preprocessors []string `koanf:"preprocessors" yaml:"preprocessors"`
	QueueSize     int      `koanf:"queue_size" yaml:"queue_size"`
}

// StateConfig controls script-state persistence. An empty path disables
// it.
type StateConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Script.RecursionLimit == 0 {
		c.Script.RecursionLimit = script.DefaultRecursionLimit
	}
	if c.Connector.Alias == "" {
		c.Connector.Alias = "quell"
	}
	if c.Connector.Codec == "" {
		c.Connector.Codec = DefaultCodec
	}
	if c.Connector.QueueSize <= 0 {
		c.Connector.QueueSize = DefaultQueueSize
	}
}

// Load reads configuration. Priority: QUELL_ environment variables over
// the config file over defaults. An empty path falls back to
// quell.yaml/quell.yml in the working directory; a missing file is not
// an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// QUELL_CONNECTOR__QUEUE_SIZE -> connector.queue_size
	if err := k.Load(env.Provider("QUELL_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "QUELL_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func findConfigFile() string {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
