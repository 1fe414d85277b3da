package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"document-ingest/internal/chunker"
	"document-ingest/internal/config"
	"document-ingest/internal/embedding"
	"document-ingest/internal/ingest"
	"document-ingest/internal/ocr"
	"document-ingest/internal/parser"
	"document-ingest/internal/store"
)

const (
	configFilePath = "./configs/config.yaml"
	usage          = "Usage: ingest [--config path] [--dry-run] <directory>"
)

func main() {
	setupLogger(config.LogConfig{Level: "info", Format: "console"})

	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	app := &cli.App{
		Name:      "ingest",
		Usage:     "Chunk, embed and store every supported document below a directory",
		ArgsUsage: "<directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   configFilePath,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print records instead of storing them",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(usage, 1)
	}
	directory := c.Args().First()

	cfg, err := loadConfig(c.String("config"), c.IsSet("config"))
	if err != nil {
		return err
	}
	setupLogger(cfg.Log)

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tesseract, err := ocr.NewTesseract(cfg.OCR.Languages...)
	if err != nil {
		return err
	}
	extractor := parser.NewExtractor(
		parser.WithImageReader(tesseract),
		parser.WithMarkdownStripping(cfg.Ingest.StripMarkdown),
	)

	embedder, err := embedding.NewFromConfig(&cfg.EmbedLLM, cfg.Ingest.BatchSize)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}

	backend, err := store.Open(ctx, &cfg.Database, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(backend); err != nil {
			log.Error().Err(err).Msg("Error closing store")
		}
	}()

	textChunker := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.OverlapWords)
	log.Info().
		Str("directory", directory).
		Str("backend", cfg.Database.Backend).
		Str("model", embedder.Model()).
		Int("chunk_size", textChunker.ChunkSize()).
		Int("batch_size", cfg.Ingest.BatchSize).
		Bool("dry_run", c.Bool("dry-run")).
		Msg("Starting ingestion")

	pipeline := ingest.NewPipeline(
		extractor,
		textChunker,
		embedder,
		store.NewWriter(backend),
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithBatchDelay(cfg.Ingest.BatchDelayOrDefault()),
		ingest.WithExtensions(cfg.Ingest.Extensions...),
		ingest.WithIgnore(cfg.Ingest.Ignore...),
		ingest.WithProgressEvery(cfg.Ingest.ProgressEvery),
		ingest.WithSorted(cfg.Ingest.SortedOrDefault()),
	)

	_, err = pipeline.ProcessDirectory(ctx, directory)
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("Ingestion interrupted")
	}
	return err
}

// loadConfig reads the config file. The default path is optional, an explicit one is not.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err == nil {
		log.Debug().Str("path", path).Msg("Loaded config")
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

func setupLogger(logConfig config.LogConfig) {
	level, err := zerolog.ParseLevel(logConfig.Level)
	if err != nil || logConfig.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if logConfig.Format == "json" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}
