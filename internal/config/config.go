// Package config loads the pipeline's nested YAML configuration, following
// the teacher's convention of one top-level Config struct nesting per-
// component sections. DATABASE_URL in the environment overrides the
// configured database URL; the OPENAI_API_KEY bearer token is not part of
// Config and is read from the environment by OpenAIAPIKey.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"convsplit/internal/chunker"
	"convsplit/internal/errs"
)

// SplitConfig controls the Splitter/Renderer.
type SplitConfig struct {
	OutDir       string `yaml:"out_dir"`
	Formats      []string `yaml:"formats"` // subset of md,json,ndjson
	NameStrategy string `yaml:"name_strategy"` // title | id | first-human-line
	DatePrefix   string `yaml:"date_prefix"`   // utc | local
	Timezone     string `yaml:"timezone"`
	JSONIndent   int    `yaml:"json_indent"`
	DryRun       bool   `yaml:"dry_run"`
	NoProgress   bool   `yaml:"no_progress"`
}

// ChunkConfig wraps the chunker's own config so it can be loaded from the
// same YAML document.
type ChunkConfig = chunker.Config

// EmbedConfig controls the Embedding Coordinator.
type EmbedConfig struct {
	Model        string `yaml:"model"`
	BatchSize    int    `yaml:"batch_size"`
	RateLimitMS  int    `yaml:"rate_limit_ms"`
	SkipExisting bool   `yaml:"skip_existing"`
}

// DatabaseConfig controls the Vector Store Gateway's connection pool.
type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"max_connections"`
	MinConnections int           `yaml:"min_connections"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// StateConfig controls the Run State Store.
type StateConfig struct {
	StateDir string `yaml:"state_dir"`
	CacheDir string `yaml:"cache_dir"`
}

// Config is the full pipeline configuration.
type Config struct {
	Split    SplitConfig    `yaml:"split"`
	Chunk    ChunkConfig    `yaml:"chunk"`
	Embed    EmbedConfig    `yaml:"embed"`
	Database DatabaseConfig `yaml:"database"`
	State    StateConfig    `yaml:"state"`
}

// Default returns a Config populated with the spec's documented defaults.
func Default() Config {
	return Config{
		Split: SplitConfig{
			OutDir:       ".",
			Formats:      []string{"md", "json", "ndjson"},
			NameStrategy: "title",
			DatePrefix:   "utc",
			JSONIndent:   2,
		},
		Chunk: chunker.DefaultConfig(),
		Embed: EmbedConfig{
			Model:       "text-embedding-3-small",
			BatchSize:   50,
			RateLimitMS: 200,
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MinConnections: 2,
			AcquireTimeout: 30 * time.Second,
		},
		State: StateConfig{
			StateDir: ".convsplit",
			CacheDir: ".convsplit/cache",
		},
	}
}

// Load reads a YAML config file over Default(), then applies the
// DATABASE_URL environment override and caps embed.batch_size at 50.
// OPENAI_API_KEY is not read here; see OpenAIAPIKey. path may be empty, in
// which case only defaults and the environment override apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errs.IO(path, "cannot read config file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errs.Validation(path, "invalid config YAML", err)
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if cfg.Embed.BatchSize > 50 {
		cfg.Embed.BatchSize = 50
	}
	return cfg, nil
}

// OpenAIAPIKey resolves the embedding service's bearer token from the
// environment, as required by spec.md's embed/query operations.
func OpenAIAPIKey() (string, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return "", errs.Validation("OPENAI_API_KEY", "environment variable is required for embed/query", nil)
	}
	return key, nil
}
