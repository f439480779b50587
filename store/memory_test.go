package store

import (
	"context"
	"testing"

	"github.com/semdex/semdex/config"
)

func testPoint(id, path string, vector []float32) Point {
	return Point{
		ID:     id,
		Vector: vector,
		Payload: Payload{
			FilePath:  path,
			Content:   "content of " + id,
			Language:  "go",
			StartLine: 1,
			EndLine:   10,
			Type:      "function",
		},
	}
}

func TestMemoryStore_ExistsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	exists, err := s.Exists(ctx)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("fresh store should not have a collection")
	}

	if err := s.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if exists, _ = s.Exists(ctx); !exists {
		t.Error("collection should exist after EnsureCollection")
	}

	if err := s.DeleteCollection(ctx); err != nil {
		t.Fatalf("delete collection failed: %v", err)
	}
	if exists, _ = s.Exists(ctx); exists {
		t.Error("collection should be gone after DeleteCollection")
	}
}

func TestMemoryStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}

	p := testPoint("id-1", "a.go", []float32{1, 0})
	for i := 0; i < 3; i++ {
		if err := s.Upsert(ctx, []Point{p}); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	if s.Len() != 1 {
		t.Errorf("expected 1 point after repeated upserts, got %d", s.Len())
	}
}

func TestMemoryStore_DeleteByPath(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}

	points := []Point{
		testPoint("a1", "a.go", []float32{1, 0}),
		testPoint("a2", "a.go", []float32{0, 1}),
		testPoint("b1", "b.go", []float32{1, 1}),
	}
	if err := s.Upsert(ctx, points); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteByPath(ctx, "a.go"); err != nil {
		t.Fatalf("delete by path failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining point, got %d", s.Len())
	}

	results, err := s.Search(ctx, []float32{1, 1}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Payload.FilePath == "a.go" {
			t.Error("deleted path still searchable")
		}
	}
}

func TestMemoryStore_DimensionChangeRecreates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []Point{testPoint("x", "x.go", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}

	// Same dimension keeps the data.
	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("same-dimension ensure must keep points, got %d", s.Len())
	}

	// A different dimension recreates the collection.
	if err := s.EnsureCollection(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("dimension change must drop points, got %d", s.Len())
	}
}

func TestMemoryStore_SearchRankingAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}

	points := []Point{
		testPoint("exact", "a.go", []float32{1, 0}),
		testPoint("close", "b.go", []float32{0.9, 0.1}),
		testPoint("far", "c.go", []float32{0, 1}),
	}
	if err := s.Upsert(ctx, points); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "exact" {
		t.Errorf("best match should be first, got %s", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score at %d", i)
		}
	}

	// Min score drops the orthogonal vector.
	results, err = s.Search(ctx, []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "far" {
			t.Error("min score filter failed to drop the distant point")
		}
	}

	// Limit truncates after ranking.
	results, err = s.Search(ctx, []float32{1, 0}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "exact" {
		t.Errorf("limit must keep the best result, got %v", results)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors should score 1, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got > 0.001 {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths should score 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector should score 0, got %f", got)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StoreConfig{Backend: "nonexistent"})
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestRegistry_MemoryBackend(t *testing.T) {
	s, err := New(context.Background(), config.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("failed to build memory store: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected a MemoryStore, got %T", s)
	}
}

func TestSanitizeCollectionName(t *testing.T) {
	a := SanitizeCollectionName("/tmp/My Project")
	b := SanitizeCollectionName("/tmp/My Project")
	if a != b {
		t.Errorf("same path produced different names: %s vs %s", a, b)
	}

	c := SanitizeCollectionName("/other/My Project")
	if a == c {
		t.Error("different paths with the same base name must not collide")
	}

	for _, r := range a {
		valid := r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !valid {
			t.Errorf("invalid rune %q in collection name %s", r, a)
		}
	}
}
