// Package config provides configuration loading for index builds and
// searches. Config files may be JSON or YAML (selected by file extension);
// secrets such as the embedding API key and the Postgres connection string
// are normally supplied through the environment rather than the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in BuildConfig.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// Default chunking parameters.
const (
	DefaultMaxSentencesPerChunk = 5
	DefaultChunkSize            = 50
	DefaultOverlapSize          = 10
	DefaultSemanticThreshold    = 0.5
	DefaultTopicThreshold       = 0.3
)

// DefaultDimensions is the embedding width used when none is configured.
const DefaultDimensions = 768

// EnvPGConn is the environment variable consulted for the Postgres
// connection string when the config file does not carry one.
const EnvPGConn = "DOCSEARCH_PG_CONN"

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // "api" or "hash"
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	ModelName  string `json:"model_name" yaml:"model_name"`
	Dimensions int    `json:"dimensions" yaml:"dimensions"`
}

// ChunkingConfig holds the chunking strategy and its parameters.
type ChunkingConfig struct {
	Strategy             string  `json:"strategy" yaml:"strategy"`
	MaxSentencesPerChunk int     `json:"max_sentences_per_chunk" yaml:"max_sentences_per_chunk"`
	ChunkSize            int     `json:"chunk_size" yaml:"chunk_size"`
	OverlapSize          int     `json:"overlap_size" yaml:"overlap_size"`
	SemanticThreshold    float64 `json:"semantic_threshold" yaml:"semantic_threshold"`
	TopicThreshold       float64 `json:"topic_threshold" yaml:"topic_threshold"`
	SplitNewlines        int     `json:"split_newlines" yaml:"split_newlines"`
}

// BuildConfig holds everything an index build needs.
type BuildConfig struct {
	Sources    []string        `json:"sources" yaml:"sources"`
	Output     string          `json:"output" yaml:"output"` // .swsearch path or collection name
	Backend    string          `json:"backend" yaml:"backend"`
	ConnString string          `json:"conn_string" yaml:"conn_string"` // pgvector only
	Overwrite  bool            `json:"overwrite" yaml:"overwrite"`
	FileTypes  []string        `json:"file_types" yaml:"file_types"`
	Exclude    []string        `json:"exclude" yaml:"exclude"`
	Tags       []string        `json:"tags" yaml:"tags"`
	Languages  []string        `json:"languages" yaml:"languages"`
	Chunking   ChunkingConfig  `json:"chunking" yaml:"chunking"`
	Embedding  EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Validate   bool            `json:"validate" yaml:"validate"` // validate immediately after build
	Verbose    bool            `json:"verbose" yaml:"verbose"`
}

// SearchConfig holds everything a search needs beyond the query itself.
type SearchConfig struct {
	Target            string          `json:"target" yaml:"target"` // .swsearch path or collection name
	Backend           string          `json:"backend" yaml:"backend"`
	ConnString        string          `json:"conn_string" yaml:"conn_string"`
	Count             int             `json:"count" yaml:"count"`
	DistanceThreshold float64         `json:"distance_threshold" yaml:"distance_threshold"`
	Tags              []string        `json:"tags" yaml:"tags"`
	Language          string          `json:"language" yaml:"language"`
	Embedding         EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Verbose           bool            `json:"verbose" yaml:"verbose"`
}

// DefaultBuildConfig returns a BuildConfig with defaults applied.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Backend:   BackendSQLite,
		FileTypes: []string{"txt", "md", "pdf", "docx", "html", "rtf", "xlsx", "pptx"},
		Languages: []string{"en"},
		Chunking: ChunkingConfig{
			Strategy:             "sentence",
			MaxSentencesPerChunk: DefaultMaxSentencesPerChunk,
			ChunkSize:            DefaultChunkSize,
			OverlapSize:          DefaultOverlapSize,
			SemanticThreshold:    DefaultSemanticThreshold,
			TopicThreshold:       DefaultTopicThreshold,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			ModelName:  "hash-768",
			Dimensions: DefaultDimensions,
		},
	}
}

// DefaultSearchConfig returns a SearchConfig with defaults applied.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Backend:  BackendSQLite,
		Count:    5,
		Language: "auto",
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			ModelName:  "hash-768",
			Dimensions: DefaultDimensions,
		},
	}
}

// LoadBuildConfig reads a build config file (JSON or YAML by extension) and
// merges it over the defaults.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()
	if err := loadInto(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadSearchConfig reads a search config file (JSON or YAML by extension) and
// merges it over the defaults.
func LoadSearchConfig(path string) (SearchConfig, error) {
	cfg := DefaultSearchConfig()
	if err := loadInto(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Check verifies a BuildConfig for fatal misconfiguration.
func (c *BuildConfig) Check() error {
	switch c.Backend {
	case BackendSQLite, BackendPGVector:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendSQLite, BackendPGVector)
	}
	if c.Backend == BackendPGVector && ResolveConnString(c.ConnString) == "" {
		return fmt.Errorf("pgvector backend requires a connection string (conn_string or %s)", EnvPGConn)
	}
	if c.Chunking.Strategy == "sliding" && c.Chunking.OverlapSize >= c.Chunking.ChunkSize {
		return fmt.Errorf("sliding window overlap_size (%d) must be smaller than chunk_size (%d)",
			c.Chunking.OverlapSize, c.Chunking.ChunkSize)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// ResolveConnString returns the configured Postgres connection string,
// falling back to the environment.
func ResolveConnString(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(EnvPGConn)
}

func loadInto(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	}
	return nil
}
