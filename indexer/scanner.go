package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const DefaultScanConcurrency = 10

// Stage identifies where an indexing run currently is.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageParsing   Stage = "parsing"
	StageEmbedding Stage = "embedding"
	StageStoring   Stage = "storing"
	StageCompleted Stage = "completed"
)

// Progress is the live record for one scan/index run. It is created at the
// start of a run, mutated in place throughout, and discarded at run end.
// Progress callbacks receive this same record by reference on every call;
// an observer that holds on to it sees later mutations too.
type Progress struct {
	mu sync.Mutex

	TotalFiles     int
	ProcessedFiles int
	CurrentFile    string
	Stage          Stage
	Errors         []string
}

// ProgressCallback observes the shared progress record.
type ProgressCallback func(p *Progress)

func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	p.Stage = stage
	p.mu.Unlock()
}

func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	p.TotalFiles = total
	p.mu.Unlock()
}

func (p *Progress) FileDone(path string) {
	p.mu.Lock()
	p.ProcessedFiles++
	p.CurrentFile = path
	p.mu.Unlock()
}

func (p *Progress) AddError(msg string) {
	p.mu.Lock()
	p.Errors = append(p.Errors, msg)
	p.mu.Unlock()
}

// Snapshot returns a copy of the counters for safe concurrent reads.
func (p *Progress) Snapshot() (total, processed int, current string, stage Stage, errCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TotalFiles, p.ProcessedFiles, p.CurrentFile, p.Stage, len(p.Errors)
}

// Scanner walks a directory tree and chunks every eligible file under a
// bounded-concurrency limit.
type Scanner struct {
	chunker     *Chunker
	ignore      *IgnoreMatcher
	maxFileSize int64
	concurrency int64
}

// NewScanner creates a Scanner. Concurrency values below 1 use the default
// permit count.
func NewScanner(chunker *Chunker, ignore *IgnoreMatcher, maxFileSize int64, concurrency int) *Scanner {
	if concurrency < 1 {
		concurrency = DefaultScanConcurrency
	}
	if maxFileSize <= 0 {
		maxFileSize = 1024 * 1024
	}
	return &Scanner{
		chunker:     chunker,
		ignore:      ignore,
		maxFileSize: maxFileSize,
		concurrency: int64(concurrency),
	}
}

// Scan enumerates the tree under root, chunks each file, and aggregates the
// resulting blocks. Per-file failures are recorded in the progress record and
// never abort the run. Block order across files is unspecified.
func (s *Scanner) Scan(ctx context.Context, root string, onProgress ProgressCallback) ([]CodeBlock, *Progress, error) {
	progress := &Progress{Stage: StageScanning}
	report := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}
	report()

	files, err := s.listFiles(root)
	if err != nil {
		return nil, progress, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	progress.SetTotal(len(files))
	progress.SetStage(StageParsing)
	report()

	sem := semaphore.NewWeighted(s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var blocks []CodeBlock

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			// Each file is isolated: a failure is recorded and the
			// remaining files proceed.
			fileBlocks := s.processFile(root, relPath, progress)

			mu.Lock()
			blocks = append(blocks, fileBlocks...)
			mu.Unlock()

			progress.FileDone(relPath)
			report()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, progress, err
	}

	return blocks, progress, nil
}

func (s *Scanner) processFile(root, relPath string, progress *Progress) []CodeBlock {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		progress.AddError(fmt.Sprintf("failed to read %s: %v", relPath, err))
		return nil
	}
	return s.chunker.Chunk(relPath, string(data))
}

// listFiles walks the tree collecting root-relative paths of eligible files.
func (s *Scanner) listFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		// Forward slashes everywhere: block paths must compare equal to the
		// watcher's event paths regardless of OS separator.
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.ignore.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !SupportedExtensions[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > s.maxFileSize {
			log.Printf("Warning: skipping %s: size %d exceeds limit %d", relPath, info.Size(), s.maxFileSize)
			return nil
		}

		files = append(files, relPath)
		return nil
	})

	return files, err
}
