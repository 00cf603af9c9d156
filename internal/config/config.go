package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatasetConfig points at the orders CSV.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// OllamaEmbedderConfig holds configuration for the Ollama / OpenAI-compatible embedder.
type OllamaEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Ollama *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig locates the on-disk index.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig tunes the similarity lookup and index build.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	IngestWorkers   int `yaml:"ingest_workers"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

// LLMConfig configures the Ollama generation endpoint.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// ChatConfig holds presentation settings.
type ChatConfig struct {
	TopUsers       int    `yaml:"top_users"`
	CurrencySymbol string `yaml:"currency_symbol"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Dataset     DatasetConfig     `yaml:"dataset"`
	Years       []int             `yaml:"years"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	LLM         LLMConfig         `yaml:"llm"`
	Chat        ChatConfig        `yaml:"chat"`
	Logger      LoggerConfig      `yaml:"logger"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/smartxerox/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the rest of the program cannot work with.
func (c *AppConfig) Validate() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if len(c.Years) == 0 {
		return fmt.Errorf("at least one supported year is required")
	}
	for _, y := range c.Years {
		if y < 1000 || y > 9999 {
			return fmt.Errorf("supported year %d is not a four-digit year", y)
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm temperature must be within [0.0, 1.0], got %g", c.LLM.Temperature)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive")
	}
	switch c.Embedder.Type {
	case "tfidf", "ollama":
	default:
		return fmt.Errorf("unknown embedder %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore.Type)
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(c.Logger.Format)) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validFormats, ", "))
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "smartxerox", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Dataset:     DatasetConfig{Path: "Smart_Xerox_3000_Orders_2023_2025.csv"},
		Years:       []int{2023, 2024, 2025},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "sqlite", SQLite: &SQLiteConfig{Path: "xerox_index.db"}},
		Retrieval:   RetrievalConfig{TopK: 20, IngestWorkers: 4, CacheTTLMinutes: 10},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "gemma3:4b",
			Temperature: 0.3,
			TimeoutSecs: 120,
		},
		Chat:   ChatConfig{TopUsers: 5, CurrencySymbol: "₹"},
		Logger: LoggerConfig{Level: "info", Format: "text", File: "smartxerox.log"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if len(cfg.Years) == 0 {
		cfg.Years = def.Years
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434/v1"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "mxbai-embed-large"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "xerox_index.db"
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "smart_xerox_orders"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.IngestWorkers <= 0 {
		cfg.Retrieval.IngestWorkers = def.Retrieval.IngestWorkers
	}
	if cfg.Retrieval.CacheTTLMinutes == 0 {
		cfg.Retrieval.CacheTTLMinutes = def.Retrieval.CacheTTLMinutes
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.Chat.TopUsers <= 0 {
		cfg.Chat.TopUsers = def.Chat.TopUsers
	}
	if cfg.Chat.CurrencySymbol == "" {
		cfg.Chat.CurrencySymbol = def.Chat.CurrencySymbol
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = def.Logger.Level
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = def.Logger.Format
	}
	if cfg.Logger.File == "" {
		cfg.Logger.File = def.Logger.File
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
