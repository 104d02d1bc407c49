// Package main implements a one-shot ingestion tool: it pushes a local
// file or a scraped web page into a user's corpus without going through
// the API server. Useful for bulk imports and local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docsage-ai/docsage/engine/chunk"
	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/embed"
	"github.com/docsage-ai/docsage/engine/index"
	"github.com/docsage-ai/docsage/engine/ingest"
	"github.com/docsage-ai/docsage/engine/loader"
	"github.com/docsage-ai/docsage/engine/scraper"
	"github.com/docsage-ai/docsage/engine/store"
	"github.com/docsage-ai/docsage/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	userID := flag.String("user", "", "user to ingest for (required)")
	file := flag.String("file", "", "local file to ingest")
	url := flag.String("url", "", "web page to scrape and ingest")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if *userID == "" || (*file == "") == (*url == "") {
		fmt.Fprintln(os.Stderr, "usage: ingest -user <id> (-file <path> | -url <http url>)")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger, *userID, *file, *url); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, userID, file, url string) error {
	db, err := store.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	backend, err := index.NewQdrant(cfg.Qdrant.Addr)
	if err != nil {
		return err
	}
	defer backend.Close()

	files := store.NewFileStore(cfg.Storage.UploadsDir)
	pipeline := ingest.New(ingest.Deps{
		Loaders: loader.NewRegistry(),
		Embedder: embed.NewOpenAI(embed.Config{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.EmbedModel,
		}),
		Index:    index.NewManager(backend, cfg.Qdrant.Dims, logger),
		Chunking: chunk.Options{MaxSize: cfg.Chunking.MaxSize, Overlap: cfg.Chunking.Overlap},
		Logger:   logger,
	})

	var filename string
	var staged *store.Staged
	switch {
	case file != "":
		filename = filepath.Base(file)
		src, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}
		staged, err = files.Stage(userID, filename, src)
		src.Close()
		if err != nil {
			return err
		}
	default:
		text, err := scraper.New(scraper.Config{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.Timeout,
		}).Scrape(ctx, url)
		if err != nil {
			return err
		}
		filename = scraper.Filename(time.Now().UTC())
		staged, err = files.Stage(userID, filename, strings.NewReader(text))
		if err != nil {
			return err
		}
	}

	res, err := pipeline.Ingest(ctx, userID, staged.Path())
	if err != nil {
		staged.Discard()
		return err
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return err
	}

	doc := &domain.SourceDocument{
		UserID:   userID,
		Filename: filename,
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
	}
	if err := db.AddDocument(ctx, doc); err != nil {
		return err
	}

	logger.Info("ingested", "user_id", userID, "filename", filename,
		"segments", res.Segments, "chunks", res.Chunks)
	return nil
}
