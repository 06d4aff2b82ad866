// Package config loads and validates coursemind configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (.coursemind.yaml in the working directory)
//  3. Environment variables (COURSEMIND_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names understood by the retrieval router. An unrecognized
// default_strategy value in config maps to DefaultStrategy at load time,
// never at dispatch time.
const (
	StrategyClassification = "classification"
	StrategyKeyword        = "keyword"
	StrategyUnified        = "unified"

	// DefaultStrategy is used when the configured string is unknown.
	DefaultStrategy = StrategyKeyword
)

// Config is the complete coursemind configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Collections CollectionsConfig `yaml:"collections" json:"collections"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Classifier  ClassifierConfig  `yaml:"classifier" json:"classifier"`
	Answer      AnswerConfig      `yaml:"answer" json:"answer"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// RetrievalConfig tunes the core retrieval pipeline.
type RetrievalConfig struct {
	// DefaultStrategy selects the routing strategy when the caller does not
	// override it: classification, keyword, or unified.
	DefaultStrategy string `yaml:"default_strategy" json:"default_strategy"`

	// Alpha is the default vector weight for hybrid search (0.0-1.0).
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// TopK is the default number of ranked hits to keep.
	TopK int `yaml:"top_k" json:"top_k"`

	// MaxContextLength is the default context budget in characters.
	MaxContextLength int `yaml:"max_context_length" json:"max_context_length"`

	// MinExcerptLength is the smallest partial excerpt worth emitting when
	// the remaining budget is nearly exhausted.
	MinExcerptLength int `yaml:"min_excerpt_length" json:"min_excerpt_length"`

	// FingerprintLength is the normalized content prefix length used for
	// duplicate detection.
	FingerprintLength int `yaml:"fingerprint_length" json:"fingerprint_length"`

	// NormalizationConstant divides raw text-match scores into ~[0,1].
	NormalizationConstant float64 `yaml:"normalization_constant" json:"normalization_constant"`

	// PerCollectionCap bounds per-collection result counts regardless of top_k.
	PerCollectionCap int `yaml:"per_collection_cap" json:"per_collection_cap"`

	// CollectionTimeout bounds each per-collection search call.
	CollectionTimeout time.Duration `yaml:"collection_timeout" json:"collection_timeout"`

	// Boosts multiply relevance by content type.
	Boosts BoostConfig `yaml:"boosts" json:"boosts"`
}

// BoostConfig holds content-type score multipliers.
type BoostConfig struct {
	// Discussion boosts Q&A/forum content (highest).
	Discussion float64 `yaml:"discussion" json:"discussion"`
	// Overview boosts course-overview and misc content (moderate).
	Overview float64 `yaml:"overview" json:"overview"`
	// Reference boosts reference/technical content (slight).
	Reference float64 `yaml:"reference" json:"reference"`
	// ProblemTerms is the extra multiplier applied to discussion content
	// when the query contains problem-indicating terms.
	ProblemTerms float64 `yaml:"problem_terms" json:"problem_terms"`
}

// CollectionsConfig describes the searchable collection topology.
type CollectionsConfig struct {
	// DataDir is the root directory holding collection indexes.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Unified is the single pre-merged comprehensive collection.
	Unified string `yaml:"unified" json:"unified"`

	// Priority collections are always searched in keyword-routed mode.
	Priority []string `yaml:"priority" json:"priority"`

	// Fallback collections substitute for failed or empty classification.
	Fallback []string `yaml:"fallback" json:"fallback"`

	// KeywordRoutes maps lower-case substring keywords to collection lists.
	KeywordRoutes map[string][]string `yaml:"keyword_routes" json:"keyword_routes"`

	// TypoTolerance enables fuzzy keyword matching in the search backend.
	TypoTolerance bool `yaml:"typo_tolerance" json:"typo_tolerance"`
}

// EmbeddingsConfig configures the embedding collaborator.
type EmbeddingsConfig struct {
	// Provider selects the embedder: ollama or static.
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// ClassifierConfig configures the classification collaborator.
type ClassifierConfig struct {
	// Provider selects the classifier: ollama or patterns.
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
}

// AnswerConfig configures the answer-generation collaborator.
type AnswerConfig struct {
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Retrieval: RetrievalConfig{
			DefaultStrategy:       DefaultStrategy,
			Alpha:                 0.5,
			TopK:                  5,
			MaxContextLength:      8000,
			MinExcerptLength:      100,
			FingerprintLength:     200,
			NormalizationConstant: 1_000_000,
			PerCollectionCap:      20,
			CollectionTimeout:     3 * time.Second,
			Boosts: BoostConfig{
				Discussion:   1.5,
				Overview:     1.2,
				Reference:    1.1,
				ProblemTerms: 1.3,
			},
		},
		Collections: CollectionsConfig{
			DataDir:       defaultDataDir(),
			Unified:       "all-content",
			Priority:      []string{"discussions", "misc"},
			Fallback:      []string{"all-content"},
			KeywordRoutes: DefaultKeywordRoutes(),
			TypoTolerance: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			Dimensions: 768,
			CacheSize:  1000,
			Timeout:    30 * time.Second,
		},
		Classifier: ClassifierConfig{
			Provider:   "patterns",
			Model:      "llama3.2:1b",
			OllamaHost: "http://localhost:11434",
			Timeout:    2 * time.Second,
			CacheSize:  1000,
		},
		Answer: AnswerConfig{
			Model:      "llama3.1:8b",
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultKeywordRoutes returns the static keyword -> collections table used
// by the keyword-routed strategy.
func DefaultKeywordRoutes() map[string][]string {
	return map[string][]string{
		"docker":      {"deployment", "infrastructure"},
		"kubernetes":  {"deployment", "infrastructure"},
		"deploy":      {"deployment"},
		"terraform":   {"infrastructure"},
		"scrape":      {"data-collection"},
		"scraping":    {"data-collection"},
		"crawl":       {"data-collection"},
		"pipeline":    {"data-engineering"},
		"airflow":     {"data-engineering"},
		"spark":       {"data-engineering"},
		"sql":         {"data-engineering"},
		"model":       {"machine-learning"},
		"training":    {"machine-learning"},
		"regression":  {"machine-learning"},
		"homework":    {"assignments"},
		"assignment":  {"assignments"},
		"deadline":    {"course-overview"},
		"certificate": {"course-overview"},
		"project":     {"assignments", "course-overview"},
	}
}

// Load loads configuration starting from defaults, then the config file in
// dir (if present), then COURSEMIND_* environment overrides, and validates
// the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .coursemind.yaml or .coursemind.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".coursemind.yaml", ".coursemind.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	r := &other.Retrieval
	if r.DefaultStrategy != "" {
		c.Retrieval.DefaultStrategy = r.DefaultStrategy
	}
	if r.Alpha != 0 {
		c.Retrieval.Alpha = r.Alpha
	}
	if r.TopK != 0 {
		c.Retrieval.TopK = r.TopK
	}
	if r.MaxContextLength != 0 {
		c.Retrieval.MaxContextLength = r.MaxContextLength
	}
	if r.MinExcerptLength != 0 {
		c.Retrieval.MinExcerptLength = r.MinExcerptLength
	}
	if r.FingerprintLength != 0 {
		c.Retrieval.FingerprintLength = r.FingerprintLength
	}
	if r.NormalizationConstant != 0 {
		c.Retrieval.NormalizationConstant = r.NormalizationConstant
	}
	if r.PerCollectionCap != 0 {
		c.Retrieval.PerCollectionCap = r.PerCollectionCap
	}
	if r.CollectionTimeout != 0 {
		c.Retrieval.CollectionTimeout = r.CollectionTimeout
	}
	if r.Boosts.Discussion != 0 {
		c.Retrieval.Boosts.Discussion = r.Boosts.Discussion
	}
	if r.Boosts.Overview != 0 {
		c.Retrieval.Boosts.Overview = r.Boosts.Overview
	}
	if r.Boosts.Reference != 0 {
		c.Retrieval.Boosts.Reference = r.Boosts.Reference
	}
	if r.Boosts.ProblemTerms != 0 {
		c.Retrieval.Boosts.ProblemTerms = r.Boosts.ProblemTerms
	}

	col := &other.Collections
	if col.DataDir != "" {
		c.Collections.DataDir = col.DataDir
	}
	if col.Unified != "" {
		c.Collections.Unified = col.Unified
	}
	if len(col.Priority) > 0 {
		c.Collections.Priority = col.Priority
	}
	if len(col.Fallback) > 0 {
		c.Collections.Fallback = col.Fallback
	}
	if len(col.KeywordRoutes) > 0 {
		c.Collections.KeywordRoutes = col.KeywordRoutes
	}

	e := &other.Embeddings
	if e.Provider != "" {
		c.Embeddings.Provider = e.Provider
	}
	if e.Model != "" {
		c.Embeddings.Model = e.Model
	}
	if e.OllamaHost != "" {
		c.Embeddings.OllamaHost = e.OllamaHost
	}
	if e.Dimensions != 0 {
		c.Embeddings.Dimensions = e.Dimensions
	}
	if e.CacheSize != 0 {
		c.Embeddings.CacheSize = e.CacheSize
	}
	if e.Timeout != 0 {
		c.Embeddings.Timeout = e.Timeout
	}

	cl := &other.Classifier
	if cl.Provider != "" {
		c.Classifier.Provider = cl.Provider
	}
	if cl.Model != "" {
		c.Classifier.Model = cl.Model
	}
	if cl.OllamaHost != "" {
		c.Classifier.OllamaHost = cl.OllamaHost
	}
	if cl.Timeout != 0 {
		c.Classifier.Timeout = cl.Timeout
	}
	if cl.CacheSize != 0 {
		c.Classifier.CacheSize = cl.CacheSize
	}

	a := &other.Answer
	if a.Model != "" {
		c.Answer.Model = a.Model
	}
	if a.OllamaHost != "" {
		c.Answer.OllamaHost = a.OllamaHost
	}
	if a.Timeout != 0 {
		c.Answer.Timeout = a.Timeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies COURSEMIND_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COURSEMIND_STRATEGY"); v != "" {
		c.Retrieval.DefaultStrategy = v
	}
	if v := os.Getenv("COURSEMIND_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.Alpha = f
		}
	}
	if v := os.Getenv("COURSEMIND_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("COURSEMIND_MAX_CONTEXT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.MaxContextLength = n
		}
	}
	if v := os.Getenv("COURSEMIND_DATA_DIR"); v != "" {
		c.Collections.DataDir = v
	}
	if v := os.Getenv("COURSEMIND_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Classifier.OllamaHost = v
		c.Answer.OllamaHost = v
	}
	if v := os.Getenv("COURSEMIND_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("COURSEMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// normalize maps unrecognized enum-like strings to their defaults.
// The strategy string is resolved here, at load time, so dispatch never
// sees an unknown value.
func (c *Config) normalize() {
	switch strings.ToLower(strings.TrimSpace(c.Retrieval.DefaultStrategy)) {
	case StrategyClassification:
		c.Retrieval.DefaultStrategy = StrategyClassification
	case StrategyKeyword, "enhanced", "keyword-routed":
		c.Retrieval.DefaultStrategy = StrategyKeyword
	case StrategyUnified:
		c.Retrieval.DefaultStrategy = StrategyUnified
	default:
		c.Retrieval.DefaultStrategy = DefaultStrategy
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "static":
		c.Embeddings.Provider = strings.ToLower(c.Embeddings.Provider)
	default:
		c.Embeddings.Provider = "ollama"
	}

	switch strings.ToLower(c.Classifier.Provider) {
	case "ollama", "patterns":
		c.Classifier.Provider = strings.ToLower(c.Classifier.Provider)
	default:
		c.Classifier.Provider = "patterns"
	}
}

// Validate checks configuration invariants. Malformed configuration at
// startup is the one condition treated as unrecoverable.
func (c *Config) Validate() error {
	r := &c.Retrieval
	if r.Alpha < 0 || r.Alpha > 1 {
		return fmt.Errorf("retrieval.alpha must be in [0,1], got %v", r.Alpha)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", r.TopK)
	}
	if r.MaxContextLength <= 0 {
		return fmt.Errorf("retrieval.max_context_length must be positive, got %d", r.MaxContextLength)
	}
	if r.NormalizationConstant <= 0 {
		return fmt.Errorf("retrieval.normalization_constant must be positive, got %v", r.NormalizationConstant)
	}
	if r.FingerprintLength <= 0 {
		return fmt.Errorf("retrieval.fingerprint_length must be positive, got %d", r.FingerprintLength)
	}
	if r.CollectionTimeout <= 0 {
		return fmt.Errorf("retrieval.collection_timeout must be positive, got %v", r.CollectionTimeout)
	}
	if c.Collections.Unified == "" {
		return fmt.Errorf("collections.unified must name the comprehensive collection")
	}
	if len(c.Collections.Fallback) == 0 {
		return fmt.Errorf("collections.fallback must not be empty")
	}
	return nil
}

// defaultDataDir returns ~/.coursemind/collections, falling back to a
// relative directory when the home directory is unavailable.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coursemind/collections"
	}
	return filepath.Join(home, ".coursemind", "collections")
}
