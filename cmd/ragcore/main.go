package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"ragcore/internal/chunker"
	"ragcore/internal/config"
	"ragcore/internal/embedding"
	"ragcore/internal/embedding/hash"
	"ragcore/internal/embedding/openai"
	"ragcore/internal/llm"
	"ragcore/internal/parser"
	"ragcore/internal/server"
	"ragcore/internal/service"
	"ragcore/internal/summarizer"
	"ragcore/internal/tui"
	"ragcore/internal/vectorstore"
	"ragcore/internal/vectorstore/flat"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var serve bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragcore/config.yaml if not provided)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of the interactive search screen")
	flag.Parse()
	inputs := flag.Args()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hash", "":
		emb = hash.New(cfg.Embedder.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			logger.Fatal("openai embedder config missing")
		}
		client, err := openai.New(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Embedder.Dimension,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
			Parallel:  cfg.Embedder.OpenAI.Parallel,
		})
		if err != nil {
			logger.Fatal("openai embedder init failed", "err", err)
		}
		emb = client
	default:
		logger.Fatal("unknown embedder", "type", cfg.Embedder.Type)
	}

	split, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		logger.Fatal("invalid chunker config", "err", err)
	}

	idx, err := flat.Load(cfg.Index.IndexPath(), cfg.Index.MetadataPath(), logger)
	switch {
	case err == nil:
		if idx.Stats().Dimension != emb.Dimension() {
			logger.Fatal("persisted index dimension does not match embedder",
				"index", idx.Stats().Dimension, "embedder", emb.Dimension())
		}
		logger.Info("loaded persisted index", "records", idx.Stats().Count)
	case errors.Is(err, vectorstore.ErrNotFound):
		idx = flat.New(emb.Dimension(), logger)
	default:
		logger.Fatal("failed to load index", "err", err)
	}

	ing := service.NewIngestion(parser.New(), split, emb, idx, summarizer.NewFrequency(),
		cfg.Index.IndexPath(), cfg.Index.MetadataPath(), logger)
	ret := service.NewRetrieval(emb, idx, cfg.Retrieval.TopK, logger)

	var answerer server.Answerer
	if cfg.LLM.Enabled {
		client, err := llm.New(llm.Config{
			APIKeyEnv:   cfg.LLM.APIKeyEnv,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			logger.Fatal("llm init failed", "err", err)
		}
		answerer = client
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(inputs) > 0 {
		summary, err := ing.IngestFiles(ctx, inputs)
		if err != nil {
			logger.Fatal("ingest failed", "err", err)
		}
		if summary.Failed > 0 {
			for _, r := range summary.Results {
				if !r.Success {
					logger.Warn("file skipped", "file", r.File, "reason", r.Error)
				}
			}
		}
		if err := ing.Save(); err != nil {
			logger.Fatal("failed to persist index", "err", err)
		}
	}

	if serve {
		runServer(ctx, cfg, ret, ing, answerer, logger)
		return
	}

	if idx.Stats().Count == 0 {
		fmt.Println("Usage: ragcore [--config=config.yaml] [--serve] file1.txt [file2.txt ...]")
		os.Exit(1)
	}
	m := tui.New(ret, ing.DigestText(5))
	if _, err := tea.NewProgram(m).Run(); err != nil {
		logger.Fatal("tui failed", "err", err)
	}
}

func runServer(ctx context.Context, cfg *config.AppConfig, ret *service.Retrieval, ing *service.Ingestion, answerer server.Answerer, logger *log.Logger) {
	srv := server.NewServer(server.Config{Addr: cfg.Server.Addr}, ret, ing, answerer, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
		if err := ing.Save(); err != nil {
			logger.Error("failed to persist index on shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", "err", err)
		}
	}
}
