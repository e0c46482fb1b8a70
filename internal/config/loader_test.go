package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodel_path: /m/a.gguf\ncontext_size: 4096\nqueue_depth: 3\ndb_path: /tmp/c.db\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelPath != "/m/a.gguf" || cfg.ContextSize != 4096 || cfg.QueueDepth != 3 || cfg.DBPath != "/tmp/c.db" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","model_path":"/m/b.gguf","context_size":2048}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelPath != "/m/b.gguf" || cfg.ContextSize != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodel_path=\"/m/c.gguf\"\nqueue_depth=20\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelPath != "/m/c.gguf" || cfg.QueueDepth != 20 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestFromEnvOverridesFile(t *testing.T) {
	t.Setenv("CHATD_ADDR", ":6001")
	t.Setenv("CHATD_MODEL", "/env/model.gguf")
	t.Setenv("CHATD_CONTEXT_SIZE", "1024")
	t.Setenv("CHATD_QUEUE_DEPTH", "bogus")
	cfg := FromEnv(Config{Addr: ":9999", ModelPath: "/file/model.gguf", QueueDepth: 5})
	if cfg.Addr != ":6001" || cfg.ModelPath != "/env/model.gguf" || cfg.ContextSize != 1024 {
		t.Fatalf("env should win: %+v", cfg)
	}
	if cfg.QueueDepth != 5 {
		t.Fatalf("invalid env int should be ignored, got %d", cfg.QueueDepth)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := ApplyDefaults(Config{})
	if cfg.Addr != DefaultAddr || cfg.ModelPath != DefaultModelPath {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ContextSize != DefaultContextSize || cfg.QueueDepth != DefaultQueueDepth {
		t.Fatalf("unexpected sizing defaults: %+v", cfg)
	}
	// Explicit values survive.
	cfg = ApplyDefaults(Config{QueueDepth: 2, ContextSize: 8192})
	if cfg.QueueDepth != 2 || cfg.ContextSize != 8192 {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}
