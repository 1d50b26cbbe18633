package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kafka.yml")
	body := []byte(`schema_version: v1
brokers: [localhost:9092]
topics: [search-requests]
group_id: eosearch
commit_mode: e2e
`)
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("EOSEARCH_KAFKA__GROUP_ID", "override")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.GroupID != "override" {
		t.Fatalf("env override not applied: %q", cfg.GroupID)
	}
	if cfg.CommitMode != CommitE2E || cfg.StartFrom != "newest" || cfg.Checkpoint.CommitInt != 5*time.Second || cfg.BackPressure.Capacity != 16 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"schema":   "schema_version: v3\nbrokers: [b]\ntopics: [t]\ngroup_id: g\n",
		"no topic": "brokers: [b]\ngroup_id: g\n",
	} {
		p := filepath.Join(dir, name+".yml")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadConfig(p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNewAdapter(t *testing.T) {
	a, err := NewAdapter("sarama")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if _, ok := a.(AckAware); !ok {
		t.Fatal("sarama driver should take acks")
	}
	if _, err := NewAdapter("kgo"); err == nil {
		t.Fatal("expected an unknown driver error")
	}
}
