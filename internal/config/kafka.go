package config

import (
	"fmt"

	"eosearch/internal/spec"
	kcfg "eosearch/source/kafka"
)

// LoadSourceConfig loads the config of the pipeline's request source.
func LoadSourceConfig(src spec.Source) (kcfg.Config, error) {
	if src.Kind != "kafka" {
		return kcfg.Config{}, fmt.Errorf("unsupported source %q", src.Kind)
	}
	return kcfg.LoadConfig(src.Config)
}
