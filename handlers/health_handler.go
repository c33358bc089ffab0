package handlers

import (
	"encoding/json"
	"net/http"
)

const serviceName = "pdf-to-csv"

// HealthHandler reports liveness. It deliberately touches nothing upstream:
// the service being up is independent of the remote models being reachable.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}
