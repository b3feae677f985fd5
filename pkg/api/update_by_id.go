package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// HandleUpdateById handles PATCH requests that merge fields into a document.
// Field names may be dotted paths. The updated document is returned.
func (h *Handler) HandleUpdateById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docID := vars["coll"], vars["id"]

	var updates domain.Document
	if err := decodeBody(r, &updates); err != nil {
		h.writeError(w, r, err)
		return
	}

	doc, err := h.storage.UpdateById(r.Context(), collName, docID, &updates)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("document updated", zap.String("collection", collName), zap.String("id", docID))
	writeJSON(w, http.StatusOK, doc)
}
