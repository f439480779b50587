package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/semdex/semdex/internal/fileutil"
)

const (
	ConfigDir      = ".semdex"
	ConfigFileName = "config.yaml"
)

type Config struct {
	Version  int            `yaml:"version"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Scan     ScanConfig     `yaml:"scan"`
	Watch    WatchConfig    `yaml:"watch"`
	Search   SearchConfig   `yaml:"search"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // openai | ollama
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions *int   `yaml:"dimensions,omitempty"`
}

// GetDimensions returns the configured dimensions or the provider default.
// For OpenAI, defaults to 1536 (text-embedding-3-small).
// For Ollama, defaults to 768 (nomic-embed-text).
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	default:
		return 768
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // qdrant | pgvector | memory
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	Pgvector PgvectorConfig `yaml:"pgvector,omitempty"`
}

type QdrantConfig struct {
	Endpoint   string `yaml:"endpoint"`             // e.g., "localhost"
	Port       int    `yaml:"port,omitempty"`       // gRPC port, e.g., 6334
	Collection string `yaml:"collection,omitempty"` // Optional, defaults from project path
	APIKey     string `yaml:"api_key,omitempty"`    // Optional, for Qdrant Cloud
	UseTLS     bool   `yaml:"use_tls,omitempty"`    // Enable TLS (for Qdrant Cloud)
}

type PgvectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table,omitempty"`
}

type ChunkingConfig struct {
	MinLines int `yaml:"min_lines"` // Minimum line count for AST-extracted blocks
	MinChars int `yaml:"min_chars"` // Minimum trimmed length for any emitted block
	MaxChars int `yaml:"max_chars"` // Ceiling for line-based chunks
}

type ScanConfig struct {
	Exclude     []string `yaml:"exclude"`       // Glob patterns relative to root
	MaxFileSize int64    `yaml:"max_file_size"` // Bytes; larger files are skipped
	Concurrency int      `yaml:"concurrency"`   // Parallel file processing limit
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

type SearchConfig struct {
	Limit    int     `yaml:"limit"`
	MinScore float32 `yaml:"min_score"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Embedder: EmbedderConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Endpoint: "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend: "qdrant",
			Qdrant: QdrantConfig{
				Endpoint: "localhost",
				Port:     6334,
			},
		},
		Chunking: ChunkingConfig{
			MinLines: 4,
			MinChars: 50,
			MaxChars: 2000,
		},
		Scan: ScanConfig{
			MaxFileSize: 1024 * 1024,
			Concurrency: 10,
			Exclude: []string{
				".git",
				".semdex",
				"node_modules",
				"vendor",
				"bin",
				"dist",
				"build",
				"__pycache__",
				".venv",
				"venv",
				".idea",
				".vscode",
				"target",
			},
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Search: SearchConfig{
			Limit:    10,
			MinScore: 0.3,
		},
	}
}

func GetConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDir)
}

func GetConfigPath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), ConfigFileName)
}

func Load(projectRoot string) (*Config, error) {
	configPath := GetConfigPath(projectRoot)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration values with sensible defaults.
// This keeps older config files working when new fields are introduced.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Embedder.Endpoint == "" {
		switch c.Embedder.Provider {
		case "openai":
			c.Embedder.Endpoint = "https://api.openai.com/v1"
		default:
			c.Embedder.Endpoint = defaults.Embedder.Endpoint
		}
	}

	if c.Chunking.MinLines == 0 {
		c.Chunking.MinLines = defaults.Chunking.MinLines
	}
	if c.Chunking.MinChars == 0 {
		c.Chunking.MinChars = defaults.Chunking.MinChars
	}
	if c.Chunking.MaxChars == 0 {
		c.Chunking.MaxChars = defaults.Chunking.MaxChars
	}

	if c.Scan.MaxFileSize == 0 {
		c.Scan.MaxFileSize = defaults.Scan.MaxFileSize
	}
	if c.Scan.Concurrency <= 0 {
		c.Scan.Concurrency = defaults.Scan.Concurrency
	}
	if c.Scan.Exclude == nil {
		c.Scan.Exclude = defaults.Scan.Exclude
	}

	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}

	if c.Search.Limit <= 0 {
		c.Search.Limit = defaults.Search.Limit
	}

	if c.Store.Backend == "qdrant" && c.Store.Qdrant.Port <= 0 {
		c.Store.Qdrant.Port = 6334
	}
	if c.Store.Backend == "pgvector" && c.Store.Pgvector.Table == "" {
		c.Store.Pgvector.Table = "semdex_blocks"
	}
}

// Save writes the config atomically so a concurrent reader never sees a
// partially written file.
func (c *Config) Save(projectRoot string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := GetConfigPath(projectRoot)
	if err := fileutil.EnsureParentDir(configPath); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := fileutil.ReplaceFileAtomically(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	return nil
}

func Exists(projectRoot string) bool {
	configPath := GetConfigPath(projectRoot)
	_, err := os.Stat(configPath)
	return err == nil
}

func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Resolve symlinks to handle symlinked directories
	cwd, err = filepath.EvalSymlinks(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	dir := cwd
	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no semdex project found (run 'semdex init' first)")
}
