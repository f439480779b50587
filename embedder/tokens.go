package embedder

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for batch sizing. It uses the
// cl100k_base encoding when available and falls back to a chars/4 heuristic
// when the encoding cannot be loaded.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

var (
	counterOnce sync.Once
	counter     *TokenCounter
)

// NewTokenCounter returns the shared token counter. The tiktoken encoding is
// loaded once per process.
func NewTokenCounter() *TokenCounter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("Warning: failed to load tiktoken encoding, using character heuristic: %v", err)
		}
		counter = &TokenCounter{enc: enc}
	})
	return counter
}

// Count returns the approximate token count for text.
func (t *TokenCounter) Count(text string) int {
	if t.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}
