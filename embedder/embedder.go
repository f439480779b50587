package embedder

import "context"

// Embedder converts text into fixed-dimension vectors via an external
// provider. Implementations must return one vector per input, in order, and
// must not assume provider-side batching.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vectors for each text, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension this embedder produces.
	Dimensions() int

	// Close releases any held resources.
	Close() error
}

// Pinger is an optional health-check interface providers can implement.
type Pinger interface {
	Ping(ctx context.Context) error
}
