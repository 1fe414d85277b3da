package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-ingest/internal/config"
	"document-ingest/internal/models"
)

// Document is one row of the chunk table.
type Document struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Content       string          `bun:"content,notnull"`
	Metadata      map[string]any  `bun:"metadata,type:jsonb"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
	CreatedAt     string          `bun:"created_at,type:timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver: "pg" uses
// bun's pgdriver, "postgres" uses lib/pq.
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	dsn := dbConfig.URL
	if !strings.Contains(dsn, "sslmode=") {
		dsn = withParam(dsn, "sslmode", "disable")
	}
	switch dbConfig.Driver {
	case "pg", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(dbConfig.Key))), nil
	case "postgres":
		dsn, err := withPassword(dsn, dbConfig.Key)
		if err != nil {
			return nil, err
		}
		return sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", dbConfig.Driver)
	}
}

func withParam(dsn, key, value string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

// withPassword sets the password of a URL-style DSN unless it already has one.
func withPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	if password == "" || u.User == nil {
		return dsn, nil
	}
	if _, ok := u.User.Password(); ok {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

// InitDB creates the vector extension and the chunk table if they are missing.
func InitDB(ctx context.Context, db *bun.DB, table string) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := db.NewCreateTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Store writes records to a Postgres table with pgvector embeddings.
type Store struct {
	db    *bun.DB
	table string
}

func NewStore(db *bun.DB, table string) *Store {
	if table == "" {
		table = models.DefaultTable
	}
	return &Store{db: db, table: table}
}

// Open connects with dbConfig and optionally creates the schema.
func Open(ctx context.Context, dbConfig *config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db := NewDB(sqldb, dbConfig.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	store := NewStore(db, dbConfig.Table)
	if dbConfig.InitSchema {
		if err := InitDB(ctx, db, store.table); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Str("table", store.table).Msg("Database schema ready")
	}
	return store, nil
}

// InsertRecords writes all records with one multi-row INSERT.
func (s *Store) InsertRecords(ctx context.Context, records []models.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := toDocuments(records)
	if _, err := s.insertQuery(docs).Exec(ctx); err != nil {
		return fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) insertQuery(docs []Document) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(&docs).
		ModelTableExpr("?", bun.Ident(s.table)).
		Returning("NULL")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toDocuments(records []models.StoredRecord) []Document {
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Document{
			Content:    r.Content,
			Metadata:   r.Metadata,
			ChunkIndex: r.ChunkIndex,
			Embedding:  pgvector.NewVector(r.Embedding),
			CreatedAt:  r.CreatedAt,
		}
	}
	return docs
}
