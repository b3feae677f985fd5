package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// MaxBatchSize bounds the documents of one batch insert.
const MaxBatchSize = 1000

// BatchInsertRequest represents the request body for batch insert operations
type BatchInsertRequest struct {
	Documents []*domain.Document `json:"documents"`
}

// BatchInsertError reports one rejected document by its position.
type BatchInsertError struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BatchInsertResponse represents the response for batch insert operations
type BatchInsertResponse struct {
	InsertedCount int                `json:"inserted_count"`
	InsertedIDs   []string           `json:"inserted_ids"`
	Errors        []BatchInsertError `json:"errors,omitempty"`
	Collection    string             `json:"collection"`
}

// HandleBatchInsert inserts documents one at a time. Each insert is atomic on
// its own; a rejected document does not stop the rest. The response is 201
// when every document was stored and 207 otherwise.
func (h *Handler) HandleBatchInsert(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req BatchInsertRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, r, fmt.Errorf("no documents provided: %w", domain.ErrValidation))
		return
	}
	if len(req.Documents) > MaxBatchSize {
		h.writeError(w, r, fmt.Errorf("maximum %d documents allowed per batch, got %d: %w",
			MaxBatchSize, len(req.Documents), domain.ErrValidation))
		return
	}

	response := BatchInsertResponse{Collection: collName, InsertedIDs: make([]string, 0, len(req.Documents))}
	for i, doc := range req.Documents {
		id, err := h.storage.Insert(r.Context(), collName, doc)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				h.writeError(w, r, err)
				return
			}
			response.Errors = append(response.Errors, BatchInsertError{
				Index:   i,
				Type:    domain.ErrorCode(err),
				Message: err.Error(),
			})
			continue
		}
		response.InsertedIDs = append(response.InsertedIDs, id)
	}
	response.InsertedCount = len(response.InsertedIDs)

	status := http.StatusCreated
	if len(response.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	h.logger.Info("batch insert finished",
		zap.String("collection", collName),
		zap.Int("inserted", response.InsertedCount),
		zap.Int("rejected", len(response.Errors)),
	)
	writeJSON(w, status, response)
}
