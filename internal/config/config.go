// Package config defines the typed vaultsearch configuration and its
// validation rules.
package config

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Reindex modes controlling the startup reconciliation decision.
const (
	ReindexAuto   = "auto"
	ReindexAlways = "always"
	ReindexNever  = "never"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the root vaultsearch configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Index     IndexConfig       `yaml:"index"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// VaultConfig describes the Markdown vault to index.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Include holds glob patterns matched against vault-relative paths;
	// empty means every .md file.
	Include []string `yaml:"include"`
	// Exclude holds prefixes and glob patterns removed from the corpus.
	Exclude []string `yaml:"exclude"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig holds vector index storage configuration.
type IndexConfig struct {
	// Dir is the directory holding the SQLite index, the fingerprint
	// store, and the PID file.
	Dir string `yaml:"dir"`
	// Rebuild is one of auto, always, never.
	Rebuild string `yaml:"rebuild"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Rebuild, validation.Required,
			validation.In(ReindexAuto, ReindexAlways, ReindexNever)),
	)
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(ProviderOllama, ProviderOpenAI)),
		validation.Field(&c.Model, validation.Required),
	)
}

// WatchConfig controls the live filesystem watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefault returns a configuration populated with usable defaults.
// Vault path and index dir still have to be provided by file or flags.
func NewDefault() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Vault: VaultConfig{
			Exclude: []string{".obsidian", ".trash"},
		},
		Index: IndexConfig{
			Rebuild: ReindexAuto,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 2 * time.Second,
		},
	}
}
