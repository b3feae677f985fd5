// Package api exposes the database over HTTP with gorilla/mux handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

// StatsProvider reports engine statistics for the health endpoint.
type StatsProvider interface {
	GetStats() storage.Stats
}

// Handler provides HTTP handlers for the database API
type Handler struct {
	storage  domain.StorageEngine
	indexer  domain.IndexEngine
	queries  domain.QueryEngine
	searcher domain.TextSearcher
	stats    StatsProvider
	logger   *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger.Named("api")
	}
}

// WithStats adds engine statistics to the health response.
func WithStats(stats StatsProvider) HandlerOption {
	return func(h *Handler) {
		h.stats = stats
	}
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(db domain.DatabaseEngine, queries domain.QueryEngine, searcher domain.TextSearcher, options ...HandlerOption) *Handler {
	h := &Handler{
		storage:  db,
		indexer:  db,
		queries:  queries,
		searcher: searcher,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeBody decodes a JSON request body into dst. Decoding failures are
// validation errors.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required: %w", domain.ErrValidation)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		return fmt.Errorf("invalid request body: %v: %w", err, domain.ErrValidation)
	}
	return nil
}

func invalidParam(key, value string) error {
	return fmt.Errorf("invalid value %q for query parameter %q: %w", value, key, domain.ErrValidation)
}
