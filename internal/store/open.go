package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"document-ingest/internal/chromemdb"
	"document-ingest/internal/config"
	"document-ingest/internal/db"
	"document-ingest/internal/supabase"
)

// Open returns the backend selected by dbConfig.Backend, or a Printer on
// stdout for dry runs. Backends holding resources also implement io.Closer.
func Open(ctx context.Context, dbConfig *config.DatabaseConfig, dryRun bool) (Backend, error) {
	if dryRun {
		log.Info().Msg("Dry run, records are printed instead of stored")
		return NewPrinter(os.Stdout), nil
	}
	log.Debug().Str("backend", dbConfig.Backend).Str("table", dbConfig.Table).Msg("Opening store")

	var (
		backend Backend
		err     error
	)
	switch dbConfig.Backend {
	case "supabase", "":
		backend, err = supabase.NewClient(dbConfig.URL, dbConfig.Key, dbConfig.Schema, dbConfig.Table)
	case "postgres":
		backend, err = db.Open(ctx, dbConfig)
	case "chromem":
		backend, err = chromemdb.NewVectorDBManager(&dbConfig.Chromem, false)
	default:
		return nil, fmt.Errorf("unknown database backend %q", dbConfig.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", dbConfig.Backend, err)
	}
	return backend, nil
}

// Close releases the backend if it holds resources.
func Close(backend Backend) error {
	if c, ok := backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
