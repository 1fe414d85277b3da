// Package ingest walks a directory tree and drives every supported file
// through extraction, chunking, embedding and storage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"document-ingest/internal/chunker"
	"document-ingest/internal/models"
)

var (
	ErrEmptyContent      = errors.New("empty content")
	ErrNoChunks          = errors.New("no chunks created")
	ErrDirectoryNotFound = errors.New("directory not found")
)

const (
	defaultBatchSize     = 10
	defaultBatchDelay    = 100 * time.Millisecond
	defaultProgressEvery = 10
)

type Extractor interface {
	ExtractText(path string) string
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Writer interface {
	StoreChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error)
}

// Stage is the last step a file completed.
type Stage string

const (
	StageStart     Stage = "start"
	StageExtracted Stage = "extracted"
	StageChunked   Stage = "chunked"
	StageEmbedded  Stage = "embedded"
	StageStored    Stage = "stored"
	StageDone      Stage = "done"
)

// FileResult is the outcome of one file. A non-nil Err marks the file failed;
// Stored still counts the chunks written by earlier batches.
type FileResult struct {
	Path   string
	Stage  Stage
	Chunks int
	Stored int
	Err    error
}

func (r FileResult) Failed() bool {
	return r.Err != nil
}

type Summary struct {
	Processed int
	Failed    int
	Results   []FileResult
}

type Pipeline struct {
	extractor     Extractor
	chunker       *chunker.Chunker
	embedder      Embedder
	writer        Writer
	batchSize     int
	batchDelay    time.Duration
	extensions    []string
	ignore        []string
	progressEvery int
	sorted        bool
}

type Option func(*Pipeline)

func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause after each batch; zero disables it.
func WithBatchDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.batchDelay = d
		}
	}
}

func WithExtensions(exts ...string) Option {
	return func(p *Pipeline) {
		if len(exts) > 0 {
			p.extensions = exts
		}
	}
}

// WithIgnore skips paths matching gitignore-style patterns relative to the root.
func WithIgnore(patterns ...string) Option {
	return func(p *Pipeline) { p.ignore = patterns }
}

func WithProgressEvery(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.progressEvery = n
		}
	}
}

func WithSorted(sorted bool) Option {
	return func(p *Pipeline) { p.sorted = sorted }
}

func NewPipeline(extractor Extractor, c *chunker.Chunker, embedder Embedder, writer Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:     extractor,
		chunker:       c,
		embedder:      embedder,
		writer:        writer,
		batchSize:     defaultBatchSize,
		batchDelay:    defaultBatchDelay,
		extensions:    models.SupportedExtensions,
		progressEvery: defaultProgressEvery,
		sorted:        true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDirectory ingests every supported file below dir, one at a time.
// A failing file is logged and counted, never fatal. The returned error is
// ErrDirectoryNotFound or the context error when the run was interrupted;
// the summary covers the files handled up to that point.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) (*Summary, error) {
	files, err := CollectFiles(dir, p.extensions, p.ignore, p.sorted)
	if err != nil {
		if errors.Is(err, ErrDirectoryNotFound) {
			log.Error().Msgf("Directory not found: %s", dir)
		} else {
			log.Error().Err(err).Msg("Error collecting files")
		}
		return &Summary{}, err
	}
	log.Info().Msgf("Found %d files to process", len(files))

	summary := &Summary{Results: make([]FileResult, 0, len(files))}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			log.Warn().Msgf("Interrupted: %d processed, %d failed", summary.Processed, summary.Failed)
			return summary, err
		}

		result := p.ProcessFile(ctx, path)
		summary.Results = append(summary.Results, result)
		if result.Failed() {
			summary.Failed++
		} else {
			summary.Processed++
		}

		if (summary.Processed+summary.Failed)%p.progressEvery == 0 {
			log.Info().Msgf("Progress: %d processed, %d failed", summary.Processed, summary.Failed)
		}
	}

	log.Info().Msgf("Completed: %d processed, %d failed", summary.Processed, summary.Failed)
	return summary, ctx.Err()
}

// ProcessFile runs one file through extract, chunk and the batched
// embed+store loop. Batches already stored are kept when a later one fails.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) FileResult {
	result := FileResult{Path: path, Stage: StageStart}
	log.Info().Msgf("Processing: %s", path)

	if err := p.processFile(ctx, &result); err != nil {
		result.Err = err
		switch {
		case errors.Is(err, ErrEmptyContent):
			log.Warn().Msgf("Empty file: %s", path)
		case errors.Is(err, ErrNoChunks):
			log.Warn().Msgf("No chunks created for: %s", path)
		default:
			log.Error().Err(err).Str("stage", string(result.Stage)).Int("stored", result.Stored).
				Msgf("Error processing %s", path)
		}
		return result
	}

	log.Info().Msgf("Successfully processed %s (%d chunks)", path, result.Chunks)
	return result
}

func (p *Pipeline) processFile(ctx context.Context, result *FileResult) error {
	path := result.Path
	content := p.extractor.ExtractText(path)
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	result.Stage = StageExtracted

	metadata := models.FileMetadata(path, filepath.Base(path), filepath.Dir(path), utf8.RuneCountInString(content))
	chunks := p.chunker.Chunk(content, metadata)
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	result.Chunks = len(chunks)
	result.Stage = StageChunked

	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}
		result.Stage = StageEmbedded

		stored, err := p.writer.StoreChunks(ctx, batch, vectors)
		if err != nil {
			return fmt.Errorf("store batch at chunk %d: %w", start, err)
		}
		result.Stored += stored
		result.Stage = StageStored

		if err := sleep(ctx, p.batchDelay); err != nil {
			return err
		}
	}
	result.Stage = StageDone
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
