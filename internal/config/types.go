// Package config loads memcore configuration: a YAML file overridden by
// environment variables, the way contextd's internal/config package does.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret wraps strings that should be redacted in logs and serialization
// (reasoner/vector backend API keys).
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// Config is the complete memcore configuration (spec.md §6).
type Config struct {
	BlockDir   string `koanf:"block_dir"`
	ArchiveDir string `koanf:"archive_dir"`

	EmbeddingDim int `koanf:"embedding_dim"`

	Retrieval RetrievalConfig `koanf:"retrieval"`
	Decay     DecayConfig     `koanf:"decay"`
	Compress  CompressConfig  `koanf:"compression"`
	Backend   BackendConfig   `koanf:"backend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// RetrievalConfig holds hybrid-search tunables.
type RetrievalConfig struct {
	DefaultTopK int          `koanf:"default_top_k"`
	Sparse      SparseConfig `koanf:"sparse"`
	RRFK        int          `koanf:"rrf_k"`
}

// SparseConfig holds the sparse keyword-boost constants (spec.md §4.4/§6).
type SparseConfig struct {
	TitleBoost float64 `koanf:"title_boost"`
	BodyBoost  float64 `koanf:"body_boost"`
	TagBoost   float64 `koanf:"tag_boost"`
	UserBoost  float64 `koanf:"user_boost"`
}

// DecayConfig holds lifecycle-archival thresholds.
type DecayConfig struct {
	TimeThresholdDays int     `koanf:"time_threshold_days"`
	UsageThreshold    float64 `koanf:"usage_threshold"`
}

// CompressConfig holds compression tunables.
type CompressConfig struct {
	SentenceBoundaryRegex string `koanf:"sentence_boundary_regex"`
}

// BackendConfig selects external providers; an empty selector means "use the
// in-memory fallback" for vector/graph, or is a terminal error for embedder.
type BackendConfig struct {
	Vector   string `koanf:"vector"`   // "chromem" (default), "qdrant", "memory"
	Graph    string `koanf:"graph"`    // "memory" (only option today)
	Embedder string `koanf:"embedder"` // "fastembed", "http"
	Reasoner string `koanf:"reasoner"` // "langchain", "" = disabled

	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Chromem   ChromemConfig   `koanf:"chromem"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Reasoning ReasoningConfig `koanf:"reasoning"`

	Timeout Duration `koanf:"timeout"`
}

type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
}

type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

type EmbeddingConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type ReasoningConfig struct {
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
}

// LoggingConfig mirrors obslog.Config's koanf-facing subset.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.BlockDir == "" {
		return fmt.Errorf("block_dir is required")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive")
	}
	if c.Retrieval.DefaultTopK <= 0 {
		return fmt.Errorf("retrieval.default_top_k must be positive")
	}
	if c.Retrieval.RRFK <= 0 {
		return fmt.Errorf("retrieval.rrf_k must be positive")
	}
	if c.Decay.TimeThresholdDays <= 0 {
		return fmt.Errorf("decay.time_threshold_days must be positive")
	}
	if c.Decay.UsageThreshold < 0 || c.Decay.UsageThreshold > 1 {
		return fmt.Errorf("decay.usage_threshold must be in [0, 1]")
	}
	return nil
}
