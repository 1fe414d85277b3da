package store

import (
	"context"
	"io"

	"document-ingest/internal/helper"
	"document-ingest/internal/models"
)

// Printer is the dry-run backend: records are written to out instead of a database.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

type printedRecord struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	ChunkIndex int            `json:"chunk_index"`
	Dimensions int            `json:"embedding_dimensions"`
	CreatedAt  string         `json:"created_at"`
}

func (p *Printer) InsertRecords(_ context.Context, records []models.StoredRecord) error {
	printed := make([]printedRecord, len(records))
	for i, r := range records {
		printed[i] = printedRecord{
			Content:    r.Content,
			Metadata:   r.Metadata,
			ChunkIndex: r.ChunkIndex,
			Dimensions: len(r.Embedding),
			CreatedAt:  r.CreatedAt,
		}
	}
	return helper.PrettyPrint(p.out, printed)
}
