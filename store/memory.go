package store

import (
	"context"
	"sort"
	"sync"

	"github.com/semdex/semdex/config"
)

func init() {
	Register("memory", func(_ context.Context, _ config.StoreConfig) (VectorStore, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore keeps the index in process memory. Useful for tests and
// throwaway sessions; everything is lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	created   bool
	dimension int
	points    map[string]Point
	byPath    map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created && s.dimension == dimension {
		return nil
	}

	s.created = true
	s.dimension = dimension
	s.points = make(map[string]Point)
	s.byPath = make(map[string]map[string]struct{})
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		s.created = true
		s.points = make(map[string]Point)
		s.byPath = make(map[string]map[string]struct{})
	}

	for _, p := range points {
		if old, ok := s.points[p.ID]; ok {
			s.unlinkPath(old.Payload.FilePath, p.ID)
		}
		s.points[p.ID] = p
		ids, ok := s.byPath[p.Payload.FilePath]
		if !ok {
			ids = make(map[string]struct{})
			s.byPath[p.Payload.FilePath] = ids
		}
		ids[p.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) DeleteByPath(_ context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byPath[filePath] {
		delete(s.points, id)
	}
	delete(s.byPath, filePath)
	return nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.created = false
	s.dimension = 0
	s.points = nil
	s.byPath = nil
	return nil
}

func (s *MemoryStore) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, limit int, minScore float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.points))
	for _, p := range s.points {
		score := cosineSimilarity(vector, p.Vector)
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *MemoryStore) unlinkPath(filePath, id string) {
	if ids, ok := s.byPath[filePath]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byPath, filePath)
		}
	}
}
