package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	// Collection operations
	router.HandleFunc("/collections", h.HandleListCollections).Methods(http.MethodGet)
	router.HandleFunc("/collections/{coll}", h.HandleInsert).Methods(http.MethodPost)
	router.HandleFunc("/collections/{coll}", h.HandleCreateCollection).Methods(http.MethodPut)
	router.HandleFunc("/collections/{coll}", h.HandleDropCollection).Methods(http.MethodDelete)
	router.HandleFunc("/collections/{coll}/batch", h.HandleBatchInsert).Methods(http.MethodPost)

	// Document operations (by ID)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleGetById).Methods(http.MethodGet)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleUpdateById).Methods(http.MethodPatch)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleReplaceById).Methods(http.MethodPut)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleDeleteById).Methods(http.MethodDelete)

	// Queries
	router.HandleFunc("/collections/{coll}/find", h.HandleFindAll).Methods(http.MethodGet)
	router.HandleFunc("/collections/{coll}/find", h.HandleFind).Methods(http.MethodPost)
	router.HandleFunc("/collections/{coll}/explain", h.HandleExplain).Methods(http.MethodPost)
	router.HandleFunc("/collections/{coll}/search", h.HandleSearch).Methods(http.MethodPost)

	// Index operations
	router.HandleFunc("/collections/{coll}/indexes", h.HandleGetIndexes).Methods(http.MethodGet)
	router.HandleFunc("/collections/{coll}/indexes", h.HandleCreateIndex).Methods(http.MethodPost)
	router.HandleFunc("/collections/{coll}/indexes/{name}", h.HandleDropIndex).Methods(http.MethodDelete)
}
