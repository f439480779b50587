package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/semdex/semdex/config"
)

// Payload is the metadata stored alongside each vector.
type Payload struct {
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Type      string `json:"type"`
	Name      string `json:"name"`
}

// Point is one embedded code block ready for storage.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult is a scored match returned by Search, best first.
type SearchResult struct {
	ID      string
	Score   float32
	Payload Payload
}

// VectorStore abstracts the vector database backend.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. If it exists with
	// a different vector dimension, it is destroyed and recreated.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// DeleteByPath removes every point whose payload file path matches.
	DeleteByPath(ctx context.Context, filePath string) error

	// DeleteCollection drops the collection entirely. Dropping a missing
	// collection is not an error.
	DeleteCollection(ctx context.Context) error

	// Exists reports whether the collection exists.
	Exists(ctx context.Context) (bool, error)

	// Search returns up to limit results with score >= minScore, best first.
	Search(ctx context.Context, vector []float32, limit int, minScore float32) ([]SearchResult, error)

	// Close releases backend resources.
	Close() error
}

// Factory builds a VectorStore from configuration.
type Factory func(ctx context.Context, cfg config.StoreConfig) (VectorStore, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to New. Called from init functions.
func Register(backend string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[backend] = factory
}

// New builds the store named by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (VectorStore, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (available: %v)", cfg.Backend, Backends())
	}
	return factory(ctx, cfg)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
