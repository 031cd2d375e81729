package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type HealthResponse struct {
	Status      string `json:"status"`
	CurrentTime string `json:"current_time"`
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Check).Methods("GET")
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthResponse{
		Status:      "HEALTHY",
		CurrentTime: time.Now().UTC().Format(time.RFC3339),
	})
}
