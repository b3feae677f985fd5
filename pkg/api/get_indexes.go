package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// IndexesResponse lists the indexes of a collection.
type IndexesResponse struct {
	Collection string             `json:"collection"`
	Indexes    []domain.IndexInfo `json:"indexes"`
}

// HandleGetIndexes handles GET requests to retrieve all indexes for a collection
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	indexes, err := h.indexer.ListIndexes(collName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexesResponse{Collection: collName, Indexes: indexes})
}
