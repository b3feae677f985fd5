package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// HandleReplaceById handles PUT requests that replace the whole content of a
// document. Fields absent from the body are removed; _id is kept.
func (h *Handler) HandleReplaceById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docID := vars["coll"], vars["id"]

	var doc domain.Document
	if err := decodeBody(r, &doc); err != nil {
		h.writeError(w, r, err)
		return
	}

	replaced, err := h.storage.ReplaceById(r.Context(), collName, docID, &doc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("document replaced", zap.String("collection", collName), zap.String("id", docID))
	writeJSON(w, http.StatusOK, replaced)
}
