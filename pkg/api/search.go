package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// SearchRequest is the body of a text search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse carries hits in relevance order.
type SearchResponse struct {
	Hits []domain.SearchHit `json:"hits"`
}

// HandleSearch handles POST /collections/{coll}/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	hits, err := h.searcher.Search(r.Context(), mux.Vars(r)["coll"], req.Query, req.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Hits: hits})
}
