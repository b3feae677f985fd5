package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// HandleDeleteById handles DELETE requests to remove a specific document by ID
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docID := vars["coll"], vars["id"]

	deleted, err := h.storage.DeleteById(r.Context(), collName, docID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		h.writeError(w, r, fmt.Errorf("document %q in collection %q: %w", docID, collName, domain.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
