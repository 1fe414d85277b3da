package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"document-ingest/internal/models"
)

// Environment variables read on top of the config file.
const (
	EnvSupabaseURL = "NEXT_PUBLIC_SUPABASE_URL"
	EnvSupabaseKey = "SUPABASE_SERVICE_ROLE_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

const (
	defaultChunkSize     = 1000 // characters
	defaultOverlapWords  = 20
	defaultBatchSize     = 10
	defaultBatchDelay    = 100 * time.Millisecond
	defaultProgressEvery = 10
)

var ErrMissingEnv = errors.New("missing required environment variables")

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	Ingest   IngestConfig   `yaml:"ingest"`
	OCR      OCRConfig      `yaml:"ocr"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects and configures the store backend.
// URL and Key hold the Supabase project URL and service role key for the
// supabase backend, or the DSN and password for the postgres backend.
type DatabaseConfig struct {
	Backend    string        `yaml:"backend"` // supabase, postgres, chromem
	URL        string        `yaml:"url"`
	Key        string        `yaml:"key"`
	Table      string        `yaml:"table"`
	Schema     string        `yaml:"schema"`
	Driver     string        `yaml:"driver"` // pg or postgres
	InitSchema bool          `yaml:"init_schema"`
	Debug      bool          `yaml:"debug"`
	Chromem    ChromemConfig `yaml:"chromem"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	ExportPath    string `yaml:"export_path"`
	EncryptionKey string `yaml:"encryption_key"`
	ImportOnOpen  bool   `yaml:"import_on_open"` // restore export_path before ingesting
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or ollama
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type IngestConfig struct {
	ChunkSize     int            `yaml:"chunk_size"`
	OverlapWords  int            `yaml:"overlap_words"`
	BatchSize     int            `yaml:"batch_size"`
	BatchDelay    *time.Duration `yaml:"batch_delay"`
	ProgressEvery int            `yaml:"progress_every"`
	Extensions    []string       `yaml:"extensions"`
	Ignore        []string       `yaml:"ignore"`
	Sorted        *bool          `yaml:"sorted"`
	StripMarkdown bool           `yaml:"strip_markdown"`
}

// BatchDelayOrDefault returns the pause after each batch; an explicit 0 disables it.
func (c *IngestConfig) BatchDelayOrDefault() time.Duration {
	if c.BatchDelay != nil {
		return *c.BatchDelay
	}
	return defaultBatchDelay
}

// SortedOrDefault reports whether file paths are processed in lexical order; defaults to true.
func (c *IngestConfig) SortedOrDefault() bool {
	if c.Sorted != nil {
		return *c.Sorted
	}
	return true
}

type OCRConfig struct {
	Languages []string `yaml:"languages"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Database.Backend == "" {
		c.Database.Backend = "supabase"
	}
	if c.Database.Table == "" {
		c.Database.Table = models.DefaultTable
	}
	if c.Database.Schema == "" {
		c.Database.Schema = "public"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pg"
	}
	if c.Database.Chromem.Path == "" {
		c.Database.Chromem.Path = "./chromemdb"
	}
	if c.Database.Chromem.Collection == "" {
		c.Database.Chromem.Collection = models.DefaultTable
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = "openai"
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = models.DefaultEmbeddingModel
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = defaultChunkSize
	}
	if c.Ingest.OverlapWords <= 0 {
		c.Ingest.OverlapWords = defaultOverlapWords
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = defaultBatchSize
	}
	if c.Ingest.ProgressEvery <= 0 {
		c.Ingest.ProgressEvery = defaultProgressEvery
	}
	if len(c.Ingest.Extensions) == 0 {
		c.Ingest.Extensions = append([]string(nil), models.SupportedExtensions...)
	}
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"nld", "eng"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// ApplyEnv overrides credentials with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvSupabaseURL); v != "" {
		c.Database.URL = v
	}
	if v := getenv(EnvSupabaseKey); v != "" {
		c.Database.Key = v
	}
	if v := getenv(EnvOpenAIKey); v != "" {
		c.EmbedLLM.Key = v
	}
}

// Validate checks that the store URL, store credential and embedding API key are set.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, EnvSupabaseURL)
	}
	if c.Database.Key == "" {
		missing = append(missing, EnvSupabaseKey)
	}
	if c.EmbedLLM.Key == "" {
		missing = append(missing, EnvOpenAIKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	switch c.Database.Backend {
	case "supabase", "postgres", "chromem":
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}
	switch c.EmbedLLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbedLLM.Provider)
	}
	return nil
}
