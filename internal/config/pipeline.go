// Package config loads the pipeline file and the provider catalog it names.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"eosearch/internal/spec"
)

// LoadPipelineSpec parses a pipeline YAML, validates schema_version, and
// returns the parsed spec and an absolute path to the provider catalog. A
// relative source config path is made absolute in the returned spec.
func LoadPipelineSpec(path string) (spec.File, string, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, "", fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = spec.SupportedSchema
	}
	if err := spec.CheckSchemaVersion(cfg.SchemaVersion); err != nil {
		return cfg, "", fmt.Errorf("pipeline %w", err)
	}
	if cfg.Providers == "" {
		return cfg, "", fmt.Errorf("pipeline %s names no provider catalog", path)
	}
	for i, s := range cfg.Searches {
		if s.Provider == "" {
			return cfg, "", fmt.Errorf("pipeline search %d names no provider", i)
		}
	}
	catalog, err := resolve(path, cfg.Providers)
	if err != nil {
		return cfg, "", err
	}
	if cfg.Source != nil && cfg.Source.Config != "" {
		if cfg.Source.Config, err = resolve(path, cfg.Source.Config); err != nil {
			return cfg, "", err
		}
	}
	return cfg, catalog, nil
}

// resolve makes p absolute, relative to the directory of the pipeline file.
func resolve(pipeline, p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(filepath.Join(filepath.Dir(pipeline), p))
}
