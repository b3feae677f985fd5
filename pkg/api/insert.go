package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// InsertResponse is returned by a successful insert.
type InsertResponse struct {
	ID string `json:"_id"`
}

// HandleInsert handles POST requests to insert documents into collections
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var doc domain.Document
	if err := decodeBody(r, &doc); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.storage.Insert(r.Context(), collName, &doc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("document inserted", zap.String("collection", collName), zap.String("id", id))
	writeJSON(w, http.StatusCreated, InsertResponse{ID: id})
}
