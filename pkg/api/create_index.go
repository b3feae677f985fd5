package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// CreateIndexResponse names the created index.
type CreateIndexResponse struct {
	Name string `json:"name"`
}

// HandleCreateIndex handles POST /collections/{coll}/indexes with an index
// definition body. The build runs in the request; writes to the collection
// wait for it.
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var def domain.IndexDefinition
	if err := decodeBody(r, &def); err != nil {
		h.writeError(w, r, err)
		return
	}

	name, err := h.indexer.CreateIndex(r.Context(), collName, def)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("index created", zap.String("collection", collName), zap.String("index", name))
	writeJSON(w, http.StatusCreated, CreateIndexResponse{Name: name})
}

// HandleDropIndex handles DELETE /collections/{coll}/indexes/{name}. The name
// may also be a key pattern such as "dob.age_1".
func (h *Handler) HandleDropIndex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.indexer.DropIndex(r.Context(), vars["coll"], vars["name"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
