package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-ingest/internal/config"
	"document-ingest/internal/helper"
	"document-ingest/internal/models"
)

// Metadata keys added on top of the chunk's own metadata; chromem only stores strings.
const (
	metaChunkIndex = models.MetaChunkIndex
	metaCreatedAt  = "created_at"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	exportPath    string
	newID         func() (string, error)
}

// NewVectorDBManager opens the persistent database at cfg.Path, or an
// in-memory one, and selects cfg.Collection.
func NewVectorDBManager(cfg *config.ChromemConfig, inMemory bool) (*VectorDBManager, error) {
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes long")
	}
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		exportPath:    cfg.ExportPath,
		newID:         helper.GenerateUUID,
	}
	if _, err := m.GetOrCreateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.ImportOnOpen {
		if err := m.importIfExported(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// importIfExported restores the collection from the export file when one exists.
func (m *VectorDBManager) importIfExported() error {
	if m.exportPath == "" {
		return errors.New("import on open needs an export path")
	}
	if _, err := os.Stat(m.exportPath); errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("file", m.exportPath).Msg("No export to import yet")
		return nil
	}
	if err := m.Import(); err != nil {
		return err
	}
	log.Info().Str("file", m.exportPath).Int("documents", m.Count()).Msg("Imported collection")
	return nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// InsertRecords adds one document per record. Embeddings are supplied, so the
// collection's embedding function is never called.
func (m *VectorDBManager) InsertRecords(ctx context.Context, records []models.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		id, err := m.newID()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   r.Content,
			Metadata:  stringMetadata(r),
			Embedding: r.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func stringMetadata(r models.StoredRecord) map[string]string {
	out := make(map[string]string, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		out[k] = fmt.Sprint(v)
	}
	out[metaChunkIndex] = strconv.Itoa(r.ChunkIndex)
	out[metaCreatedAt] = r.CreatedAt
	return out
}

// Count returns the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Export writes the collection to the configured export file.
func (m *VectorDBManager) Export() error {
	if m.exportPath == "" {
		return errors.New("export path is required")
	}
	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", m.exportPath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")
	if err := m.db.ExportToFile(m.exportPath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection from the configured export file.
func (m *VectorDBManager) Import() error {
	name := m.collection.Name
	if err := m.db.ImportFromFile(m.exportPath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// Importing replaces the collection object.
	if c := m.db.GetCollection(name, nil); c != nil {
		m.collection = c
	}
	return nil
}

// Close exports the collection when an export path is configured.
func (m *VectorDBManager) Close() error {
	if m.exportPath == "" {
		return nil
	}
	if err := m.Export(); err != nil {
		return err
	}
	log.Info().Str("file", filepath.Clean(m.exportPath)).Int("documents", m.Count()).Msg("Exported collection")
	return nil
}
