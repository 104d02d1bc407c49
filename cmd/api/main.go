// Package main implements the document QA API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docsage-ai/docsage/engine/chunk"
	"github.com/docsage-ai/docsage/engine/embed"
	"github.com/docsage-ai/docsage/engine/index"
	"github.com/docsage-ai/docsage/engine/ingest"
	"github.com/docsage-ai/docsage/engine/loader"
	"github.com/docsage-ai/docsage/engine/query"
	"github.com/docsage-ai/docsage/engine/retrieve"
	"github.com/docsage-ai/docsage/engine/scraper"
	"github.com/docsage-ai/docsage/engine/store"
	"github.com/docsage-ai/docsage/engine/synth"
	"github.com/docsage-ai/docsage/pkg/config"
	"github.com/docsage-ai/docsage/pkg/metrics"
	"github.com/docsage-ai/docsage/pkg/mid"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Local development keys live in .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	manager := index.NewManager(backend, cfg.Qdrant.Dims, logger)
	embedder := embed.NewOpenAI(embed.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.EmbedModel,
	})
	chat := synth.NewOpenAI(synth.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.ChatModel,
	})
	chunking := chunk.Options{MaxSize: cfg.Chunking.MaxSize, Overlap: cfg.Chunking.Overlap}
	loaders := loader.NewRegistry()

	srv := &server{
		store: db,
		files: files,
		index: manager,
		ingest: ingest.New(ingest.Deps{
			Loaders:  loaders,
			Embedder: embedder,
			Index:    manager,
			Chunking: chunking,
			Logger:   logger,
		}),
		query: query.New(query.Deps{
			Store:       db,
			Files:       files,
			Loaders:     loaders,
			Embedder:    embedder,
			Index:       manager,
			Retriever:   retrieve.New(embedder, manager, cfg.Retrieval.TopK),
			Synthesizer: synth.New(chat),
			Chunking:    chunking,
			Logger:      logger,
		}),
		scraper: scraper.New(scraper.Config{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.Timeout,
		}),
		logger: logger,
		reg:    metrics.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", srv.reg.Handler())
	mux.Handle("/api/", mid.Chain(srv.routes(), mid.Auth(db)))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.OTel("docsage-api"),
	)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
