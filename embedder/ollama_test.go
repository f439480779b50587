package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %s", req.Model)
		}

		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))

	vecs, err := emb.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if len(vecs[0]) != 3 {
		t.Errorf("expected 3-dimensional vector, got %d", len(vecs[0]))
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))

	if _, err := emb.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected an error from a failing server")
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{1, 2}},
		})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))

	if _, err := emb.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected an error when the server returns too few vectors")
	}
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	emb := NewOllamaEmbedder()
	if emb.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", emb.Dimensions())
	}

	emb = NewOllamaEmbedder(WithOllamaDimensions(1024))
	if emb.Dimensions() != 1024 {
		t.Errorf("expected 1024 dimensions, got %d", emb.Dimensions())
	}
}

func TestOllamaEmbedder_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(WithOllamaEndpoint(srv.URL))
	if err := emb.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}

	srv.Close()
	if err := emb.Ping(context.Background()); err == nil {
		t.Error("expected ping failure after server shutdown")
	}
}
