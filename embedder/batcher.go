package embedder

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	DefaultMaxItemTokens  = 8192
	DefaultMaxBatchTokens = 32768
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
)

// Outcome is the per-item result of a batched embed call. Carrying an
// explicit skipped flag keeps output aligned with input even when oversized
// items are dropped, so callers never zip vectors back by array length.
type Outcome struct {
	Vector  []float32
	Skipped bool // item exceeded the per-item token ceiling
}

// Batcher packs texts into token-bounded batches and obtains vectors from an
// Embedder with retry and exponential backoff. Batches of one call are sent
// strictly sequentially.
type Batcher struct {
	embedder       Embedder
	counter        *TokenCounter
	maxItemTokens  int
	maxBatchTokens int
	maxAttempts    int
	initialBackoff time.Duration
}

type BatcherOption func(*Batcher)

func WithMaxItemTokens(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.maxItemTokens = n
		}
	}
}

func WithMaxBatchTokens(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.maxBatchTokens = n
		}
	}
}

func WithMaxAttempts(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

func WithInitialBackoff(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		if d > 0 {
			b.initialBackoff = d
		}
	}
}

func NewBatcher(emb Embedder, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		embedder:       emb,
		counter:        NewTokenCounter(),
		maxItemTokens:  DefaultMaxItemTokens,
		maxBatchTokens: DefaultMaxBatchTokens,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
	}

	for _, opt := range opts {
		opt(b)
	}

	// A single admissible item must always fit in a batch.
	if b.maxItemTokens > b.maxBatchTokens {
		b.maxItemTokens = b.maxBatchTokens
	}

	return b
}

// batch holds original input indices so results map back positionally.
type batch struct {
	indices []int
	texts   []string
}

// Embed packs texts into batches and embeds them sequentially. The returned
// slice has exactly one outcome per input, in input order. If any batch fails
// after all retry attempts, the whole call fails and no outcomes are
// returned.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(texts))
	batches := b.pack(texts, outcomes)

	for _, bt := range batches {
		vectors, err := b.embedWithRetry(ctx, bt.texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(bt.texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(bt.texts))
		}
		for i, idx := range bt.indices {
			outcomes[idx] = Outcome{Vector: vectors[i]}
		}
	}

	return outcomes, nil
}

// pack forms token-bounded batches. Items over the per-item ceiling are
// marked skipped in outcomes and excluded from every batch.
func (b *Batcher) pack(texts []string, outcomes []Outcome) []batch {
	var batches []batch
	var cur batch
	curTokens := 0

	flush := func() {
		if len(cur.indices) > 0 {
			batches = append(batches, cur)
			cur = batch{}
			curTokens = 0
		}
	}

	for i, text := range texts {
		tokens := b.counter.Count(text)
		if tokens > b.maxItemTokens {
			log.Printf("Warning: dropping oversized item %d: %d tokens exceeds limit %d", i, tokens, b.maxItemTokens)
			outcomes[i] = Outcome{Skipped: true}
			continue
		}

		if curTokens+tokens > b.maxBatchTokens {
			flush()
		}

		cur.indices = append(cur.indices, i)
		cur.texts = append(cur.texts, text)
		curTokens += tokens
	}
	flush()

	return batches
}

// embedWithRetry sends one batch, retrying transient failures with
// exponential backoff. Exhausting all attempts is fatal for the whole call.
func (b *Batcher) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := b.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt < b.maxAttempts {
			log.Printf("Embedding batch failed (attempt %d/%d), retrying in %s: %v", attempt, b.maxAttempts, backoff, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", b.maxAttempts, lastErr)
}
