package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// HandleExplain handles POST /collections/{coll}/explain. The verbosity
// query parameter selects queryPlanner (default) or executionStats.
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	var req domain.FindRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	verbosity := domain.Verbosity(r.URL.Query().Get("verbosity"))

	explanation, err := h.queries.Explain(r.Context(), mux.Vars(r)["coll"], req, verbosity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}
