package handlers

import (
	"net/http"

	"localchat-backend/internal/models"
	"localchat-backend/pkg/httputil"
)

// HealthHandler reports whether the model is ready to serve chats.
type HealthHandler struct {
	model ModelStatus
}

func NewHealthHandler(model ModelStatus) *HealthHandler {
	return &HealthHandler{model: model}
}

// HandleHealth handles GET /api/health. It answers 200 while loading too.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := h.model.IsLoaded()
	status := "loading"
	if loaded {
		status = "ok"
	}
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{
		Status:      status,
		ModelID:     h.model.ModelID(),
		ModelLoaded: loaded,
	})
}
