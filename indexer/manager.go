package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/semdex/semdex/config"
	"github.com/semdex/semdex/embedder"
	"github.com/semdex/semdex/store"
	"github.com/semdex/semdex/watcher"
)

// State tracks what the manager is currently doing. It is process-local;
// the vector store is the source of truth for whether an index exists.
type State string

const (
	StateIdle     State = "idle"
	StateIndexing State = "indexing"
	StateIndexed  State = "indexed"
	StateError    State = "error"
	StateWatching State = "watching"
)

var (
	ErrIndexingInProgress = errors.New("indexing already in progress")
	ErrWatchInProgress    = errors.New("watch in progress: stop watching before reindexing")
	ErrNotIndexed         = errors.New("no index found: run index first")
)

// upsertBatchSize is the number of blocks embedded and stored per round.
const upsertBatchSize = 32

// Manager composes the chunker, scanner, batcher, store and watcher behind
// the four public operations: IndexDirectory, Search, StartWatching /
// StopWatching and ClearIndex.
type Manager struct {
	root     string
	cfg      *config.Config
	store    store.VectorStore
	embedder embedder.Embedder
	batcher  *embedder.Batcher
	chunker  *Chunker
	ignore   *IgnoreMatcher
	scanner  *Scanner

	mu      sync.Mutex
	state   State
	watcher *watcher.Watcher
}

func NewManager(root string, cfg *config.Config, st store.VectorStore, emb embedder.Embedder) *Manager {
	chunker := NewChunker(cfg.Chunking.MinLines, cfg.Chunking.MinChars, cfg.Chunking.MaxChars)
	ignore := NewIgnoreMatcher(root, cfg.Scan.Exclude)

	return &Manager{
		root:     root,
		cfg:      cfg,
		store:    st,
		embedder: emb,
		batcher:  embedder.NewBatcher(emb),
		chunker:  chunker,
		ignore:   ignore,
		scanner:  NewScanner(chunker, ignore, cfg.Scan.MaxFileSize, cfg.Scan.Concurrency),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "" {
		return StateIdle
	}
	return m.state
}

// IndexDirectory scans the root, embeds every block and upserts the result.
// Calling it while an index run or a watch is active fails without touching
// the store.
func (m *Manager) IndexDirectory(ctx context.Context, onProgress ProgressCallback) error {
	m.mu.Lock()
	switch m.state {
	case StateIndexing:
		m.mu.Unlock()
		return ErrIndexingInProgress
	case StateWatching:
		m.mu.Unlock()
		return ErrWatchInProgress
	}
	m.state = StateIndexing
	m.mu.Unlock()

	err := m.indexDirectory(ctx, onProgress)

	m.mu.Lock()
	if err != nil {
		m.state = StateError
	} else {
		m.state = StateIndexed
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) indexDirectory(ctx context.Context, onProgress ProgressCallback) error {
	if err := m.store.EnsureCollection(ctx, m.embedder.Dimensions()); err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}

	blocks, progress, err := m.scanner.Scan(ctx, m.root, onProgress)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(blocks) == 0 {
		progress.SetStage(StageCompleted)
		if onProgress != nil {
			onProgress(progress)
		}
		return nil
	}

	for start := 0; start < len(blocks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		batch := blocks[start:end]

		progress.SetStage(StageEmbedding)
		if onProgress != nil {
			onProgress(progress)
		}

		points, err := m.embedBlocks(ctx, batch)
		if err != nil {
			return err
		}

		progress.SetStage(StageStoring)
		if onProgress != nil {
			onProgress(progress)
		}

		if err := m.store.Upsert(ctx, points); err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
	}

	progress.SetStage(StageCompleted)
	if onProgress != nil {
		onProgress(progress)
	}
	return nil
}

// embedBlocks embeds a batch of blocks and returns points for every block
// that was not dropped for size.
func (m *Manager) embedBlocks(ctx context.Context, blocks []CodeBlock) ([]store.Point, error) {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Content
	}

	outcomes, err := m.batcher.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed blocks: %w", err)
	}

	points := make([]store.Point, 0, len(blocks))
	for i, outcome := range outcomes {
		if outcome.Skipped {
			log.Printf("Skipping oversized block %s:%d-%d", blocks[i].FilePath, blocks[i].StartLine, blocks[i].EndLine)
			continue
		}
		points = append(points, store.Point{
			ID:     blocks[i].ID,
			Vector: outcome.Vector,
			Payload: store.Payload{
				FilePath:  blocks[i].FilePath,
				Content:   blocks[i].Content,
				Language:  blocks[i].Language,
				StartLine: blocks[i].StartLine,
				EndLine:   blocks[i].EndLine,
				Type:      string(blocks[i].Type),
				Name:      blocks[i].Name,
			},
		})
	}
	return points, nil
}

// Search embeds the query and returns ranked matches. It works in any
// state; availability is decided by the store, not by in-process state, so
// a fresh process can search an index built by an earlier one.
func (m *Manager) Search(ctx context.Context, query string, limit int, minScore float32) ([]store.SearchResult, error) {
	exists, err := m.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check index: %w", err)
	}
	if !exists {
		return nil, ErrNotIndexed
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := m.store.Search(ctx, vector, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// StoreExists reports whether the backing collection exists.
func (m *Manager) StoreExists(ctx context.Context) (bool, error) {
	return m.store.Exists(ctx)
}

// StartWatching begins watching the root for changes, reindexing changed
// files as they settle. An active watch is stopped and replaced.
func (m *Manager) StartWatching(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateIndexing {
		m.mu.Unlock()
		return ErrIndexingInProgress
	}
	prev := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(); err != nil {
			log.Printf("Failed to stop previous watch: %v", err)
		}
	}

	w, err := watcher.New(watcher.Config{
		Root:          m.root,
		Debounce:      time.Duration(m.cfg.Watch.DebounceMs) * time.Millisecond,
		ShouldIgnore:  m.ignore.ShouldIgnore,
		ShouldSkipDir: m.ignore.ShouldSkipDir,
		Extensions:    SupportedExtensions,
	}, m.handleFileChange)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	m.mu.Lock()
	m.watcher = w
	m.state = StateWatching
	m.mu.Unlock()
	return nil
}

// StopWatching halts the active watch. Callbacks already in flight run to
// completion before this returns.
func (m *Manager) StopWatching() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	if m.state == StateWatching {
		m.state = StateIdle
	}
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Stop()
}

// ClearIndex stops any watch and deletes the backing collection.
func (m *Manager) ClearIndex(ctx context.Context) error {
	if err := m.StopWatching(); err != nil {
		log.Printf("Failed to stop watch: %v", err)
	}

	if err := m.store.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()
	return nil
}

// handleFileChange reindexes a single changed file. Deletes remove the
// file's points; adds and modifies replace them wholesale so a file that
// shrank leaves no orphaned points.
func (m *Manager) handleFileChange(event watcher.Event) {
	ctx := context.Background()

	if event.Type == watcher.ChangeUnlink {
		if err := m.store.DeleteByPath(ctx, event.Path); err != nil {
			log.Printf("Failed to remove %s from index: %v", event.Path, err)
			return
		}
		log.Printf("Removed %s from index", event.Path)
		return
	}

	absPath := filepath.Join(m.root, event.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Raced with a delete; treat as unlink.
			if err := m.store.DeleteByPath(ctx, event.Path); err != nil {
				log.Printf("Failed to remove %s from index: %v", event.Path, err)
			}
			return
		}
		log.Printf("Failed to read %s: %v", event.Path, err)
		return
	}

	blocks := m.chunker.Chunk(event.Path, string(content))

	if err := m.store.DeleteByPath(ctx, event.Path); err != nil {
		log.Printf("Failed to refresh %s in index: %v", event.Path, err)
		return
	}

	if len(blocks) == 0 {
		log.Printf("Updated %s (no indexable blocks)", event.Path)
		return
	}

	points, err := m.embedBlocks(ctx, blocks)
	if err != nil {
		log.Printf("Failed to embed %s: %v", event.Path, err)
		return
	}

	if err := m.store.Upsert(ctx, points); err != nil {
		log.Printf("Failed to store %s: %v", event.Path, err)
		return
	}

	log.Printf("Reindexed %s (%d blocks)", event.Path, len(blocks))
}
