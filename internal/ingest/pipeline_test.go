package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-ingest/internal/chunker"
	"document-ingest/internal/models"
)

// fakeExtractor returns canned text keyed by file name.
type fakeExtractor struct {
	texts map[string]string
	calls []string
}

func (f *fakeExtractor) ExtractText(path string) string {
	f.calls = append(f.calls, filepath.Base(path))
	return f.texts[filepath.Base(path)]
}

type fakeEmbedder struct {
	batches [][]string
	failOn  int // 1-based call number that fails, 0 for never
	err     error
	onCall  func()
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.onCall != nil {
		f.onCall()
	}
	if f.failOn == len(f.batches) {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(f.batches)), float32(i)}
	}
	return vectors, nil
}

type fakeWriter struct {
	batches [][]models.Chunk
	err     error
}

func (f *fakeWriter) StoreChunks(_ context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(chunks) != len(vectors) {
		return 0, errors.New("length mismatch")
	}
	f.batches = append(f.batches, chunks)
	return len(chunks), nil
}

// sentenceText yields n sentences; with chunk size 1 every sentence closes a chunk.
func sentenceText(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, ". ")
}

func newTestPipeline(ex Extractor, em Embedder, w Writer, opts ...Option) *Pipeline {
	opts = append([]Option{WithBatchDelay(0)}, opts...)
	return NewPipeline(ex, chunker.New(1, 20), em, w, opts...)
}

func TestProcessDirectory_failingFileDoesNotAbort(t *testing.T) {
	root := touch(t, t.TempDir(), "a.txt", "b.pdf", "c.md")
	ex := &fakeExtractor{texts: map[string]string{"a.txt": "Alpha. Beta", "c.md": "Gamma"}}
	em, w := &fakeEmbedder{}, &fakeWriter{}

	summary, err := newTestPipeline(ex, em, w).ProcessDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"a.txt", "b.pdf", "c.md"}, ex.calls)

	require.Len(t, summary.Results, 3)
	failed := summary.Results[1]
	assert.True(t, errors.Is(failed.Err, ErrEmptyContent))
	assert.Equal(t, StageStart, failed.Stage)
	assert.Equal(t, StageDone, summary.Results[2].Stage)
	assert.Equal(t, 1, summary.Results[2].Stored)
}

func TestProcessDirectory_noSupportedFiles(t *testing.T) {
	root := touch(t, t.TempDir(), "song.mp3", "image.gif")
	ex, em, w := &fakeExtractor{}, &fakeEmbedder{}, &fakeWriter{}

	summary, err := newTestPipeline(ex, em, w).ProcessDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, ex.calls)
	assert.Empty(t, em.batches)
	assert.Empty(t, w.batches)
}

func TestProcessDirectory_directoryNotFound(t *testing.T) {
	summary, err := newTestPipeline(&fakeExtractor{}, &fakeEmbedder{}, &fakeWriter{}).
		ProcessDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.True(t, errors.Is(err, ErrDirectoryNotFound))
	assert.Zero(t, summary.Processed+summary.Failed)
}

func TestProcessFile_batches(t *testing.T) {
	root := touch(t, t.TempDir(), "long.txt")
	ex := &fakeExtractor{texts: map[string]string{"long.txt": sentenceText(25)}}
	em, w := &fakeEmbedder{}, &fakeWriter{}

	result := newTestPipeline(ex, em, w).ProcessFile(context.Background(), filepath.Join(root, "long.txt"))
	require.NoError(t, result.Err)

	assert.Equal(t, StageDone, result.Stage)
	assert.Equal(t, 25, result.Chunks)
	assert.Equal(t, 25, result.Stored)
	require.Len(t, em.batches, 3)
	assert.Len(t, em.batches[0], 10)
	assert.Len(t, em.batches[1], 10)
	assert.Len(t, em.batches[2], 5)

	require.Len(t, w.batches, 3)
	for b, batch := range w.batches {
		for i, chunk := range batch {
			assert.Equal(t, b*10+i, chunk.ChunkIndex)
			assert.Equal(t, em.batches[b][i], chunk.Content)
		}
	}
}

func TestProcessFile_metadata(t *testing.T) {
	root := touch(t, t.TempDir(), "docs/é.txt")
	path := filepath.Join(root, "docs", "é.txt")
	ex := &fakeExtractor{texts: map[string]string{"é.txt": "Café au lait"}}
	w := &fakeWriter{}

	result := newTestPipeline(ex, &fakeEmbedder{}, w).ProcessFile(context.Background(), path)
	require.NoError(t, result.Err)

	require.Len(t, w.batches, 1)
	meta := w.batches[0][0].Metadata
	assert.Equal(t, path, meta[models.MetaSource])
	assert.Equal(t, "é.txt", meta[models.MetaFilename])
	assert.Equal(t, filepath.Join(root, "docs"), meta[models.MetaDirectory])
	assert.Equal(t, 12, meta[models.MetaFileSize])
	assert.Equal(t, 0, meta[models.MetaChunkIndex])
}

func TestProcessFile_embedErrorKeepsEarlierBatches(t *testing.T) {
	root := touch(t, t.TempDir(), "long.txt")
	ex := &fakeExtractor{texts: map[string]string{"long.txt": sentenceText(25)}}
	embedErr := errors.New("rate limited")
	em, w := &fakeEmbedder{failOn: 2, err: embedErr}, &fakeWriter{}

	result := newTestPipeline(ex, em, w).ProcessFile(context.Background(), filepath.Join(root, "long.txt"))

	assert.True(t, result.Failed())
	assert.True(t, errors.Is(result.Err, embedErr))
	assert.Equal(t, StageStored, result.Stage)
	assert.Equal(t, 10, result.Stored)
	assert.Len(t, w.batches, 1)
	assert.Len(t, em.batches, 2)
}

func TestProcessFile_storeError(t *testing.T) {
	root := touch(t, t.TempDir(), "a.txt")
	ex := &fakeExtractor{texts: map[string]string{"a.txt": "One. Two"}}
	storeErr := errors.New("insert failed")

	result := newTestPipeline(ex, &fakeEmbedder{}, &fakeWriter{err: storeErr}).
		ProcessFile(context.Background(), filepath.Join(root, "a.txt"))

	assert.True(t, errors.Is(result.Err, storeErr))
	assert.Equal(t, StageEmbedded, result.Stage)
	assert.Zero(t, result.Stored)
}

func TestProcessFile_whitespaceOnly(t *testing.T) {
	root := touch(t, t.TempDir(), "blank.txt")
	ex := &fakeExtractor{texts: map[string]string{"blank.txt": " \n\t "}}
	em := &fakeEmbedder{}

	result := newTestPipeline(ex, em, &fakeWriter{}).ProcessFile(context.Background(), filepath.Join(root, "blank.txt"))

	assert.True(t, errors.Is(result.Err, ErrEmptyContent))
	assert.Empty(t, em.batches)
}

func TestProcessFile_noChunks(t *testing.T) {
	root := touch(t, t.TempDir(), "dots.txt")
	ex := &fakeExtractor{texts: map[string]string{"dots.txt": "... . ."}}

	result := newTestPipeline(ex, &fakeEmbedder{}, &fakeWriter{}).ProcessFile(context.Background(), filepath.Join(root, "dots.txt"))

	assert.True(t, errors.Is(result.Err, ErrNoChunks))
	assert.Equal(t, StageExtracted, result.Stage)
}

func TestProcessDirectory_canceledBeforeStart(t *testing.T) {
	root := touch(t, t.TempDir(), "a.txt", "b.txt")
	ex := &fakeExtractor{texts: map[string]string{"a.txt": "A", "b.txt": "B"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestPipeline(ex, &fakeEmbedder{}, &fakeWriter{}).ProcessDirectory(ctx, root)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Processed+summary.Failed)
	assert.Empty(t, ex.calls)
}

func TestProcessDirectory_cancelDuringBatchDelay(t *testing.T) {
	root := touch(t, t.TempDir(), "a.txt", "b.txt")
	ex := &fakeExtractor{texts: map[string]string{"a.txt": sentenceText(15), "b.txt": "B"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	em, w := &fakeEmbedder{onCall: cancel}, &fakeWriter{}

	start := time.Now()
	summary, err := NewPipeline(ex, chunker.New(1, 20), em, w, WithBatchDelay(time.Hour)).ProcessDirectory(ctx, root)

	assert.Less(t, time.Since(start), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 10, summary.Results[0].Stored)
	assert.Equal(t, []string{"a.txt"}, ex.calls)
}

func TestProcessDirectory_progressLogging(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	names := make([]string, 12)
	texts := map[string]string{}
	for i := range names {
		names[i] = fmt.Sprintf("f%02d.txt", i)
		if i%4 != 0 {
			texts[names[i]] = "Text"
		}
	}
	root := touch(t, t.TempDir(), names...)

	summary, err := newTestPipeline(&fakeExtractor{texts: texts}, &fakeEmbedder{}, &fakeWriter{}, WithProgressEvery(5)).
		ProcessDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Processed)
	assert.Equal(t, 3, summary.Failed)
	out := buf.String()
	assert.Contains(t, out, "Found 12 files to process")
	assert.Equal(t, 2, strings.Count(out, "Progress: "))
	assert.Contains(t, out, "Progress: 3 processed, 2 failed")
	assert.Contains(t, out, "Progress: 7 processed, 3 failed")
	assert.Contains(t, out, "Completed: 9 processed, 3 failed")
}

func TestNewPipeline_defaults(t *testing.T) {
	p := NewPipeline(&fakeExtractor{}, chunker.New(0, 0), &fakeEmbedder{}, &fakeWriter{}, WithBatchSize(0), WithProgressEvery(-1))
	assert.Equal(t, 10, p.batchSize)
	assert.Equal(t, 100*time.Millisecond, p.batchDelay)
	assert.Equal(t, 10, p.progressEvery)
	assert.True(t, p.sorted)
	assert.Equal(t, models.SupportedExtensions, p.extensions)
}
