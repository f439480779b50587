package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Embedder.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.Embedder.Provider)
	}
	if cfg.Store.Backend != "qdrant" {
		t.Errorf("expected default backend qdrant, got %s", cfg.Store.Backend)
	}
	if cfg.Chunking.MinLines <= 0 || cfg.Chunking.MinChars <= 0 || cfg.Chunking.MaxChars <= 0 {
		t.Error("chunking thresholds must be positive")
	}
	if cfg.Watch.DebounceMs <= 0 {
		t.Error("debounce must be positive")
	}
	if cfg.Scan.Concurrency <= 0 {
		t.Error("scan concurrency must be positive")
	}
}

func TestEmbedderConfig_GetDimensions(t *testing.T) {
	cfg := EmbedderConfig{Provider: "ollama"}
	if got := cfg.GetDimensions(); got != 768 {
		t.Errorf("expected 768 for ollama, got %d", got)
	}

	cfg = EmbedderConfig{Provider: "openai"}
	if got := cfg.GetDimensions(); got != 1536 {
		t.Errorf("expected 1536 for openai, got %d", got)
	}

	dims := 3072
	cfg = EmbedderConfig{Provider: "openai", Dimensions: &dims}
	if got := cfg.GetDimensions(); got != 3072 {
		t.Errorf("explicit dimensions must win, got %d", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Embedder.Provider = "openai"
	cfg.Embedder.Model = "text-embedding-3-small"
	cfg.Store.Backend = "pgvector"
	cfg.Store.Pgvector.DSN = "postgres://localhost:5432/semdex"

	if err := cfg.Save(root); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !Exists(root) {
		t.Fatal("config should exist after save")
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Embedder.Provider != "openai" {
		t.Errorf("provider lost in roundtrip: %s", loaded.Embedder.Provider)
	}
	if loaded.Store.Backend != "pgvector" {
		t.Errorf("backend lost in roundtrip: %s", loaded.Store.Backend)
	}
	if loaded.Store.Pgvector.DSN != "postgres://localhost:5432/semdex" {
		t.Errorf("dsn lost in roundtrip: %s", loaded.Store.Pgvector.DSN)
	}
}

func TestLoad_AppliesDefaultsToSparseConfig(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, ConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	sparse := "version: 1\nembedder:\n  provider: ollama\nstore:\n  backend: qdrant\n"
	if err := os.WriteFile(filepath.Join(configDir, ConfigFileName), []byte(sparse), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Chunking.MinLines == 0 {
		t.Error("min lines default not applied")
	}
	if cfg.Scan.Concurrency == 0 {
		t.Error("concurrency default not applied")
	}
	if cfg.Watch.DebounceMs == 0 {
		t.Error("debounce default not applied")
	}
	if cfg.Store.Qdrant.Port != 6334 {
		t.Errorf("qdrant port default not applied, got %d", cfg.Store.Qdrant.Port)
	}
	if cfg.Embedder.Endpoint == "" {
		t.Error("embedder endpoint default not applied")
	}
}

func TestLoad_MissingConfig(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	if Exists(root) {
		t.Error("fresh directory should not have a config")
	}
	if err := DefaultConfig().Save(root); err != nil {
		t.Fatal(err)
	}
	if !Exists(root) {
		t.Error("config should exist after save")
	}
}
