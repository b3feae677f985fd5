package api

import (
	"net/http"

	"github.com/adfharrison1/idxdb/pkg/storage"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Stats   *storage.Stats `json:"stats,omitempty"`
}

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Message: "idxdb is running",
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.Stats = &stats
	}
	writeJSON(w, http.StatusOK, response)
}
