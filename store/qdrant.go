package store

import (
	"context"
	"fmt"
	"log"

	"github.com/qdrant/go-client/qdrant"

	"github.com/semdex/semdex/config"
)

func init() {
	Register("qdrant", func(_ context.Context, cfg config.StoreConfig) (VectorStore, error) {
		return NewQdrantStore(cfg.Qdrant)
	})
}

// QdrantStore talks to a Qdrant instance over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	host := cfg.Endpoint
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", s.collection, err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to inspect collection %q: %w", s.collection, err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size == uint64(dimension) {
			return nil
		}
		log.Printf("Collection %q has dimension %d, expected %d: recreating", s.collection, size, dimension)
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection %q: %w", s.collection, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", s.collection, err)
	}

	// Keyword index on file_path makes per-file deletes cheap.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "file_path",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		log.Printf("Warning: failed to index file_path on %q: %v", s.collection, err)
	}

	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"file_path":  p.Payload.FilePath,
				"content":    p.Payload.Content,
				"language":   p.Payload.Language,
				"start_line": int64(p.Payload.StartLine),
				"end_line":   int64(p.Payload.EndLine),
				"type":       p.Payload.Type,
				"name":       p.Payload.Name,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *QdrantStore) DeleteByPath(ctx context.Context, filePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("file_path", filePath),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", filePath, err)
	}
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", s.collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", s.collection, err)
	}
	return nil
}

func (s *QdrantStore) Exists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %q: %w", s.collection, err)
	}
	return exists, nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, minScore float32) ([]SearchResult, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(minScore),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, sp := range points {
		payload := sp.GetPayload()
		results = append(results, SearchResult{
			ID:    sp.GetId().GetUuid(),
			Score: sp.GetScore(),
			Payload: Payload{
				FilePath:  payload["file_path"].GetStringValue(),
				Content:   payload["content"].GetStringValue(),
				Language:  payload["language"].GetStringValue(),
				StartLine: int(payload["start_line"].GetIntegerValue()),
				EndLine:   int(payload["end_line"].GetIntegerValue()),
				Type:      payload["type"].GetStringValue(),
				Name:      payload["name"].GetStringValue(),
			},
		})
	}
	return results, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
