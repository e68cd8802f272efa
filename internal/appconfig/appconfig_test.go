package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tornado-matcher.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
output:
  endpoint: "https://collector.internal/v1/actions"
  api_key: "0123456789abcdef0123456789abcdef"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.LogLevel != "info" {
		t.Errorf("agent.log_level = %q, want info", cfg.Agent.LogLevel)
	}
	if cfg.Matcher.Path == "" || cfg.Matcher.ReloadOn != "fsnotify" {
		t.Errorf("matcher defaults = %+v", cfg.Matcher)
	}
	if cfg.Ingest.Format != "jsonl" || cfg.Ingest.Compression != "none" {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Store.MaxGenerations != 50 {
		t.Errorf("store.max_generations = %d, want 50", cfg.Store.MaxGenerations)
	}
	if cfg.Workers.PoolSize != 4 {
		t.Errorf("workers.pool_size = %d, want 4", cfg.Workers.PoolSize)
	}
	if cfg.Output.FlushOnEnqueue == nil || !*cfg.Output.FlushOnEnqueue {
		t.Error("expected output.flush_on_enqueue to default true")
	}
}

func TestLoadRequiresOutputByDefault(t *testing.T) {
	path := writeConfig(t, "agent:\n  id: test\n")

	if _, err := Load(path); err == nil {
		t.Error("expected missing output.endpoint to fail validation")
	}
	if _, err := LoadForReadOnly(path); err != nil {
		t.Errorf("LoadForReadOnly: %v", err)
	}
}

func TestLoadRejectsPlainHTTPForRemoteHost(t *testing.T) {
	path := writeConfig(t, `
output:
  endpoint: "http://collector.example.com/v1/actions"
  api_key: "0123456789abcdef0123456789abcdef"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected plain http:// to a remote host to be rejected")
	}
}

func TestLoadRejectsBadIngestCompression(t *testing.T) {
	path := writeConfig(t, `
ingest:
  compression: bzip2
output:
  endpoint: "https://collector.internal/v1/actions"
  api_key: "0123456789abcdef0123456789abcdef"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected unknown ingest.compression to be rejected")
	}
}
