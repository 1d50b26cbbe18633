package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"eosearch/internal/spec"
)

type CommitMode string

const (
	CommitAuto CommitMode = "auto" // commit once the request is handed over
	CommitE2E  CommitMode = "e2e"  // commit once its entries reached the sinks
)

// EnvPrefix marks environment overrides, e.g. EOSEARCH_KAFKA__GROUP_ID.
const EnvPrefix = "EOSEARCH_KAFKA__"

type BackPressureCfg struct {
	Capacity int64 `koanf:"capacity"` // max requests awaiting their ack
}

type CheckpointCfg struct {
	CommitInt time.Duration `koanf:"commit_interval"` // flush cadence
}

type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topics    []string `koanf:"topics"`
	GroupID   string   `koanf:"group_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest (default newest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`

	CommitMode   CommitMode      `koanf:"commit_mode"` // auto|e2e
	BackPressure BackPressureCfg `koanf:"backpressure"`
	Checkpoint   CheckpointCfg   `koanf:"checkpoint"`
}

// LoadConfig merges the YAML at path (optional) with environment overrides.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("kafka source config: %w", err)
		}
	}
	if err := spec.CheckSchemaVersion(k.String("schema_version")); err != nil {
		return Config{}, fmt.Errorf("kafka source %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if len(cfg.Brokers) == 0 || len(cfg.Topics) == 0 || cfg.GroupID == "" {
		return cfg, fmt.Errorf("kafka source needs brokers, topics and group_id")
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.BackPressure.Capacity <= 0 {
		c.BackPressure.Capacity = 16
	}
	if c.Checkpoint.CommitInt == 0 {
		c.Checkpoint.CommitInt = 5 * time.Second
	}
	if c.CommitMode != CommitAuto && c.CommitMode != CommitE2E {
		c.CommitMode = CommitAuto
	}
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
}
