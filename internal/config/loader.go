package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied for fields left unset by file and environment.
const (
	DefaultAddr        = ":8080"
	DefaultModelPath   = "models/Llama-3.2-3B-Instruct-Q4_K_M.gguf"
	DefaultContextSize = 32768
	DefaultQueueDepth  = 10
	DefaultDBPath      = "chatd.db"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	QueueDepth  int    `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	DBPath      string `json:"db_path" yaml:"db_path" toml:"db_path"`
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// FromEnv overlays CHATD_* environment variables onto cfg.
// Environment takes precedence over file values.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("CHATD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CHATD_MODEL"); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv("CHATD_CONTEXT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ContextSize = n
		}
	}
	if v := os.Getenv("CHATD_QUEUE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueDepth = n
		}
	}
	if v := os.Getenv("CHATD_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CHATD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// ApplyDefaults fills unset fields with package defaults.
func ApplyDefaults(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultModelPath
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = DefaultContextSize
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}
