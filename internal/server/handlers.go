package server

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"ragcore/internal/domain"
	"ragcore/internal/service"
	"ragcore/internal/vectorstore"
)

// RetrievalService is the read side of the knowledge base.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, topK int, minSimilarity float64) ([]domain.RetrievalResult, error)
	PrepareContext(ctx context.Context, query string, topK int, includeSources bool) (string, error)
}

// IngestionService is the write side of the knowledge base.
type IngestionService interface {
	IngestText(ctx context.Context, text string, base map[string]string) (int, error)
	IngestFiles(ctx context.Context, paths []string) (service.Summary, error)
	Stats() vectorstore.Stats
	Clear()
	Save() error
}

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestTextRequest is the body of POST /v1/ingest.
type IngestTextRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestTextResponse reports how many chunks a text ingestion added.
type IngestTextResponse struct {
	ChunksAdded int `json:"chunks_added"`
}

// IngestFilesRequest is the body of POST /v1/ingest/files.
type IngestFilesRequest struct {
	Paths []string `json:"paths"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query   string                   `json:"query"`
	Results []domain.RetrievalResult `json:"results"`
}

// ContextResponse is the body of GET /v1/context.
type ContextResponse struct {
	Query   string `json:"query"`
	Context string `json:"context"`
}

// AskResponse is the body of GET /v1/ask.
type AskResponse struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional): number of results to return
//   - min_similarity (optional): drop results below this similarity
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	topK, err := queryInt(c, "top_k")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
	}
	minSimilarity, err := queryFloat(c, "min_similarity")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "min_similarity must be a number in (0, 1]"})
	}

	results, err := s.retrieval.Retrieve(c.Context(), query, topK, minSimilarity)
	if err != nil {
		s.logger.Error("search failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return c.JSON(SearchResponse{Query: query, Results: results})
}

// handleContext returns the formatted context block for a query. With
// sources=false the source prefixes are omitted.
func (s *Server) handleContext(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}
	topK, err := queryInt(c, "top_k")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
	}
	includeSources := c.Query("sources", "true") != "false"

	block, err := s.retrieval.PrepareContext(c.Context(), query, topK, includeSources)
	if err != nil {
		s.logger.Error("context preparation failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(ContextResponse{Query: query, Context: block})
}

// handleAsk retrieves context for the query and has the configured LLM
// answer from it.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	if s.answerer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ask is not configured: no llm backend"})
	}
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}
	topK, err := queryInt(c, "top_k")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
	}

	block, err := s.retrieval.PrepareContext(c.Context(), query, topK, true)
	if err != nil {
		s.logger.Error("context preparation failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	answer, err := s.answerer.Answer(c.Context(), query, block)
	if err != nil {
		s.logger.Error("answer failed", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(AskResponse{Query: query, Answer: answer})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.ingestion.Stats())
}

func (s *Server) handleIngestText(c *fiber.Ctx) error {
	var req IngestTextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	count, err := s.ingestion.IngestText(c.Context(), req.Text, req.Metadata)
	if err != nil {
		s.logger.Error("text ingestion failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(IngestTextResponse{ChunksAdded: count})
}

func (s *Server) handleIngestFiles(c *fiber.Ctx) error {
	var req IngestFilesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Paths) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "paths is required"})
	}

	summary, err := s.ingestion.IngestFiles(c.Context(), req.Paths)
	if err != nil {
		s.logger.Error("file ingestion failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(summary)
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.ingestion.Clear()
	return c.JSON(s.ingestion.Stats())
}

func (s *Server) handleSave(c *fiber.Ctx) error {
	if err := s.ingestion.Save(); err != nil {
		s.logger.Error("save failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{"saved": true})
}

func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, fiber.ErrBadRequest
	}
	return parsed, nil
}

func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		return 0, fiber.ErrBadRequest
	}
	return parsed, nil
}
