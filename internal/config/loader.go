package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables, matching contextd's layering:
//
//  1. Environment variables (MEMCORE_BLOCK_DIR, MEMCORE_EMBEDDING_DIM, ...)
//  2. YAML config file (default ~/.config/memcore/config.yaml)
//  3. Hardcoded defaults
//
// configPath may be empty to use the default path.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "memcore", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MEMCORE_BLOCK_DIR -> block_dir, MEMCORE_RETRIEVAL_DEFAULT_TOP_K -> retrieval.default_top_k
	if err := k.Load(env.Provider("MEMCORE_", ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, "MEMCORE_")
		lower := strings.ToLower(trimmed)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields,
// matching spec.md §6's enumerated defaults.
func applyDefaults(cfg *Config) {
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "archive"
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 384
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.RRFK == 0 {
		cfg.Retrieval.RRFK = 60
	}
	if cfg.Retrieval.Sparse.TitleBoost == 0 {
		cfg.Retrieval.Sparse.TitleBoost = 0.20
	}
	if cfg.Retrieval.Sparse.BodyBoost == 0 {
		cfg.Retrieval.Sparse.BodyBoost = 0.10
	}
	if cfg.Retrieval.Sparse.TagBoost == 0 {
		cfg.Retrieval.Sparse.TagBoost = 0.10
	}
	if cfg.Retrieval.Sparse.UserBoost == 0 {
		cfg.Retrieval.Sparse.UserBoost = 0.15
	}
	if cfg.Decay.TimeThresholdDays == 0 {
		cfg.Decay.TimeThresholdDays = 180
	}
	if cfg.Decay.UsageThreshold == 0 {
		cfg.Decay.UsageThreshold = 0.01
	}
	if cfg.Backend.Vector == "" {
		cfg.Backend.Vector = "chromem"
	}
	if cfg.Backend.Chromem.Collection == "" {
		cfg.Backend.Chromem.Collection = "memcore_default"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(30_000_000_000) // 30s
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// EnsureConfigDir creates the memcore config directory if it doesn't exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "memcore")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}
