package config

import (
	"os"
	"path/filepath"
	"testing"

	"eosearch/internal/spec"
)

func TestLoadPipelineSpec_ResolvesRelativeCatalogAndSchema(t *testing.T) {
	dir := t.TempDir()
	pipe := []byte(`schema_version: v1
providers: providers.yml
searches:
  - provider: cds
    product_type: ERA5_SL
    args: {startTimeFromAscendingNode: "2020-01-01"}
    pages: 2
source:
  kind: kafka
  driver: sarama
  config: kafka_source.yml
sinks: [stdout]
`)
	if err := os.WriteFile(filepath.Join(dir, "pipeline.yml"), pipe, 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}

	cfg, abs, err := LoadPipelineSpec(filepath.Join(dir, "pipeline.yml"))
	if err != nil {
		t.Fatalf("LoadPipelineSpec: %v", err)
	}
	if cfg.SchemaVersion != spec.SupportedSchema {
		t.Fatalf("want schema %s, got %s", spec.SupportedSchema, cfg.SchemaVersion)
	}
	if abs != filepath.Join(dir, "providers.yml") {
		t.Fatalf("want absolute catalog path, got %q", abs)
	}
	if cfg.Source == nil || cfg.Source.Config != filepath.Join(dir, "kafka_source.yml") {
		t.Fatalf("want absolute source config path, got %+v", cfg.Source)
	}
	if len(cfg.Searches) != 1 || cfg.Searches[0].Pages != 2 || cfg.Searches[0].Args["startTimeFromAscendingNode"] != "2020-01-01" {
		t.Fatalf("unexpected searches: %+v", cfg.Searches)
	}
}

func TestLoadPipelineSpec_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	pipe := []byte(`schema_version: v999
providers: providers.yml
sinks: [stdout]
`)
	if err := os.WriteFile(filepath.Join(dir, "pipeline.yml"), pipe, 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	_, _, err := LoadPipelineSpec(filepath.Join(dir, "pipeline.yml"))
	if err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}

func TestLoadPipelineSpec_RequiresProvider(t *testing.T) {
	dir := t.TempDir()
	pipe := []byte(`providers: providers.yml
searches: [{product_type: X}]
`)
	if err := os.WriteFile(filepath.Join(dir, "pipeline.yml"), pipe, 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if _, _, err := LoadPipelineSpec(filepath.Join(dir, "pipeline.yml")); err == nil {
		t.Fatal("expected error for search without provider")
	}
}
