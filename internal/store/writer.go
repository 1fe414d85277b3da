package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog/log"

	"document-ingest/internal/models"
)

var ErrLengthMismatch = errors.New("chunks and embeddings differ in length")

// Backend persists a batch of records in a single call.
type Backend interface {
	InsertRecords(ctx context.Context, records []models.StoredRecord) error
}

// Writer turns embedded chunks into records and hands them to a Backend.
type Writer struct {
	backend Backend
	now     func() time.Time
}

func NewWriter(backend Backend) *Writer {
	return &Writer{backend: backend, now: time.Now}
}

// StoreChunks stores one batch and returns the number of records written.
func (w *Writer) StoreChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	records, err := BuildRecords(chunks, vectors, w.now())
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := w.backend.InsertRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("store %d chunks: %w", len(records), err)
	}
	log.Info().Msgf("Stored %d chunks", len(records))
	return len(records), nil
}

// BuildRecords pairs chunks with their embeddings. chunk_index moves from the
// metadata map to its own column; every record gets the same created_at.
func BuildRecords(chunks []models.Chunk, vectors [][]float32, now time.Time) ([]models.StoredRecord, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(vectors))
	}
	createdAt := now.Format(models.CreatedAtLayout)
	records := make([]models.StoredRecord, len(chunks))
	for i, chunk := range chunks {
		metadata := maps.Clone(chunk.Metadata)
		if metadata == nil {
			metadata = map[string]any{}
		}
		delete(metadata, models.MetaChunkIndex)
		records[i] = models.StoredRecord{
			Content:    chunk.Content,
			Metadata:   metadata,
			ChunkIndex: chunk.ChunkIndex,
			Embedding:  vectors[i],
			CreatedAt:  createdAt,
		}
	}
	return records, nil
}
