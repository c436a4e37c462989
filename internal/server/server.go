// Package server exposes the ingestion and retrieval services over HTTP.
package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// Answerer produces a grounded answer for a query given a context block.
// Optional; when nil the ask endpoint reports unavailable.
type Answerer interface {
	Answer(ctx context.Context, query, contextBlock string) (string, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr string
}

// Server is the HTTP API over the knowledge base.
type Server struct {
	config    Config
	retrieval RetrievalService
	ingestion IngestionService
	answerer  Answerer
	logger    *log.Logger
	app       *fiber.App
}

// NewServer wires the API routes. The services are injected so the server
// shares the same index as the rest of the process.
func NewServer(config Config, retrieval RetrievalService, ingestion IngestionService, answerer Answerer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		retrieval: retrieval,
		ingestion: ingestion,
		answerer:  answerer,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearch)
	app.Get("/v1/context", s.handleContext)
	app.Get("/v1/ask", s.handleAsk)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/ingest", s.handleIngestText)
	app.Post("/v1/ingest/files", s.handleIngestFiles)
	app.Post("/v1/clear", s.handleClear)
	app.Post("/v1/save", s.handleSave)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.Addr)
	return s.app.Listen(s.config.Addr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
