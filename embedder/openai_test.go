package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedder_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewOpenAIEmbedder(); err == nil {
		t.Fatal("expected an error without an API key")
	}

	if _, err := NewOpenAIEmbedder(WithOpenAIKey("sk-test")); err != nil {
		t.Fatalf("explicit key should suffice: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-env")
	if _, err := NewOpenAIEmbedder(); err != nil {
		t.Fatalf("env key should suffice: %v", err)
	}
}

func TestOpenAIEmbedder_EmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}

		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		// Return data out of order; the client must sort by index.
		resp := openAIEmbedResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{
				Embedding: []float32{float32(i), 1},
				Index:     i,
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(WithOpenAIKey("sk-test"), WithOpenAIEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := emb.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: got %f", i, v[0])
		}
	}
}

func TestOpenAIEmbedder_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"message": "invalid api key",
				"type":    "invalid_request_error",
			},
		})
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(WithOpenAIKey("sk-bad"), WithOpenAIEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = emb.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected an API error")
	}
}

func TestOpenAIEmbedder_Dimensions(t *testing.T) {
	emb, err := NewOpenAIEmbedder(WithOpenAIKey("sk-test"))
	if err != nil {
		t.Fatal(err)
	}
	if emb.Dimensions() != 1536 {
		t.Errorf("expected default 1536 dimensions, got %d", emb.Dimensions())
	}

	emb, err = NewOpenAIEmbedder(WithOpenAIKey("sk-test"), WithOpenAIDimensions(256))
	if err != nil {
		t.Fatal(err)
	}
	if emb.Dimensions() != 256 {
		t.Errorf("expected 256 dimensions, got %d", emb.Dimensions())
	}
}
