package embedder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeEmbedder records batch calls and can fail a configured number of
// times before succeeding.
type fakeEmbedder struct {
	dims     int
	failures int
	calls    int
	batches  [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient provider error")
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims == 0 {
		return 2
	}
	return f.dims
}

func (f *fakeEmbedder) Close() error { return nil }

func TestBatcher_OnePerInputInOrder(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake, WithMaxBatchTokens(8))

	texts := []string{"alpha one", "beta two", "gamma three", "delta four"}
	outcomes, err := b.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(outcomes) != len(texts) {
		t.Fatalf("expected %d outcomes, got %d", len(texts), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Skipped {
			t.Errorf("outcome %d unexpectedly skipped", i)
			continue
		}
		if o.Vector[0] != float32(len(texts[i])) {
			t.Errorf("outcome %d does not correspond to input %d", i, i)
		}
	}

	// Every input must appear exactly once across batches, in order.
	var sent []string
	for _, batch := range fake.batches {
		sent = append(sent, batch...)
	}
	if strings.Join(sent, "|") != strings.Join(texts, "|") {
		t.Errorf("batched inputs %v do not match originals %v", sent, texts)
	}
	if len(fake.batches) < 2 {
		t.Errorf("expected the token ceiling to force multiple batches, got %d", len(fake.batches))
	}
}

func TestBatcher_BatchesRespectTokenCeiling(t *testing.T) {
	fake := &fakeEmbedder{}
	const ceiling = 12
	b := NewBatcher(fake, WithMaxBatchTokens(ceiling))

	texts := []string{
		"alpha one", "b", "gamma three four five", "delta", "epsilon six seven",
		"z", "eta eight nine ten eleven", "theta", "iota twelve", "kappa",
	}
	if _, err := b.Embed(context.Background(), texts); err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(fake.batches) < 2 {
		t.Fatalf("inputs should not fit in one batch, got %d", len(fake.batches))
	}
	for i, batch := range fake.batches {
		sum := 0
		for _, text := range batch {
			sum += b.counter.Count(text)
		}
		if sum > ceiling {
			t.Errorf("batch %d holds %d tokens, exceeding the %d ceiling: %v", i, sum, ceiling, batch)
		}
	}
}

func TestBatcher_SkipsOversizedItems(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake, WithMaxItemTokens(10), WithMaxBatchTokens(1000))

	huge := strings.Repeat("oversized content block ", 100)
	texts := []string{"short text", huge, "another short"}

	outcomes, err := b.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if outcomes[0].Skipped || outcomes[2].Skipped {
		t.Error("small items must not be skipped")
	}
	if !outcomes[1].Skipped {
		t.Error("oversized item must be skipped")
	}
	if outcomes[1].Vector != nil {
		t.Error("skipped item must not carry a vector")
	}

	for _, batch := range fake.batches {
		for _, text := range batch {
			if text == huge {
				t.Error("oversized item was sent to the provider")
			}
		}
	}
}

func TestBatcher_RetriesThenSucceeds(t *testing.T) {
	fake := &fakeEmbedder{failures: 2}
	b := NewBatcher(fake, WithMaxAttempts(3), WithInitialBackoff(time.Millisecond))

	outcomes, err := b.Embed(context.Background(), []string{"retry me"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if outcomes[0].Skipped || outcomes[0].Vector == nil {
		t.Error("expected a vector after retry")
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.calls)
	}
}

func TestBatcher_ExhaustsRetries(t *testing.T) {
	fake := &fakeEmbedder{failures: 100}
	b := NewBatcher(fake, WithMaxAttempts(3), WithInitialBackoff(time.Millisecond))

	_, err := b.Embed(context.Background(), []string{"doomed"})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error should name the attempt count, got: %v", err)
	}
	if fake.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", fake.calls)
	}
}

func TestBatcher_ContextCancelDuringBackoff(t *testing.T) {
	fake := &fakeEmbedder{failures: 100}
	b := NewBatcher(fake, WithMaxAttempts(3), WithInitialBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Embed(ctx, []string{"cancelled"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatcher_EmptyInput(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake)

	outcomes, err := b.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
	if fake.calls != 0 {
		t.Errorf("no provider calls expected, got %d", fake.calls)
	}
}
