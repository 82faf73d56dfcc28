// Package config loads goflow settings from a YAML file and GOFLOW_*
// environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOFLOW_"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type Storage struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	// Format is "json" or "yaml" for the file driver.
	Format string `mapstructure:"format"`
	Redis  Redis  `mapstructure:"redis"`
	// EncryptionKey is a hex encoded 32 byte AES key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	// RedactKeys are regular expressions matched against condition param keys.
	RedactKeys []string `mapstructure:"redact_keys"`
}

type HTTP struct {
	Port string `mapstructure:"port"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full goflow configuration.
type Config struct {
	ProjectID       string  `mapstructure:"project_id"`
	TimelineID      string  `mapstructure:"timeline_id"`
	HistoryCapacity int     `mapstructure:"history_capacity"`
	LogLevel        string  `mapstructure:"log_level"`
	LogFormat       string  `mapstructure:"log_format"`
	Storage         Storage `mapstructure:"storage"`
	HTTP            HTTP    `mapstructure:"http"`
	Metrics         Metrics `mapstructure:"metrics"`
	// Conditions maps a condition type to its parameter types, e.g.
	// {"flag": {"name": "string"}}.
	Conditions map[string]map[string]string `mapstructure:"conditions"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ProjectID:       "default",
		TimelineID:      "main",
		HistoryCapacity: domain.DefaultHistoryCapacity,
		LogLevel:        "info",
		LogFormat:       "text",
		Storage: Storage{
			Driver: DriverFile,
			Path:   ".goflow/projects",
			Format: "json",
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "goflow:",
			},
		},
		HTTP: HTTP{Port: "8080"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(raw, os.Environ())

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays GOFLOW_* variables. Nested keys use a double
// underscore: GOFLOW_STORAGE__REDIS__ADDR sets storage.redis.addr.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__")
		node := raw
		for _, p := range path[:len(path)-1] {
			next, ok := node[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[p] = next
			}
			node = next
		}
		node[path[len(path)-1]] = val
	}
}

// Validate checks values mapstructure cannot.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverRedis:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity: must be positive, got %d", c.HistoryCapacity)
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := c.EncryptionKey(); err != nil {
			return err
		}
	}
	if _, err := c.ConditionSchemas(); err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	return nil
}

// EncryptionKey decodes storage.encryption_key. It returns nil when unset.
func (c Config) EncryptionKey() ([]byte, error) {
	if c.Storage.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Storage.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("storage.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("storage.encryption_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ConditionSchemas parses the conditions section.
func (c Config) ConditionSchemas() (schema.ConditionSchemas, error) {
	if len(c.Conditions) == 0 {
		return nil, nil
	}
	return schema.ParseConditionSchemas(c.Conditions)
}
