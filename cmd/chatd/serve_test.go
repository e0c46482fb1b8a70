package main

import (
	"os"
	"path/filepath"
	"testing"

	"chatd/internal/config"
)

func TestResolveConfigLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chatd.yaml")
	if err := os.WriteFile(file, []byte("addr: \":7000\"\nqueue_depth: 4\ndb_path: file.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHATD_ADDR", ":7001")
	t.Setenv("CHATD_MODEL", "env.gguf")

	cfg, err := resolveConfig(file, config.Config{Addr: ":7002"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Flags beat env, env beats file, file beats defaults.
	if cfg.Addr != ":7002" {
		t.Fatalf("addr: got %q", cfg.Addr)
	}
	if cfg.ModelPath != "env.gguf" {
		t.Fatalf("model: got %q", cfg.ModelPath)
	}
	if cfg.QueueDepth != 4 || cfg.DBPath != "file.db" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.ContextSize != config.DefaultContextSize {
		t.Fatalf("default context size not applied: %d", cfg.ContextSize)
	}
}

func TestResolveConfigMissingFile(t *testing.T) {
	if _, err := resolveConfig(filepath.Join(t.TempDir(), "absent.toml"), config.Config{}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
