package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CollectionsResponse lists collection names.
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// HandleListCollections handles GET /collections.
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: h.storage.ListCollections()})
}

// HandleCreateCollection handles PUT /collections/{coll}.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]
	if err := h.storage.CreateCollection(collName); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("collection created", zap.String("collection", collName))
	w.WriteHeader(http.StatusCreated)
}

// HandleDropCollection handles DELETE /collections/{coll}.
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]
	if err := h.storage.DropCollection(collName); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
