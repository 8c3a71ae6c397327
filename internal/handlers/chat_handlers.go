package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"localchat-backend/internal/auth"
	"localchat-backend/internal/generation"
	"localchat-backend/internal/models"
	"localchat-backend/internal/services"
	"localchat-backend/pkg/httputil"
)

// DefaultKeepAliveInterval is the gap between SSE comment pings on an idle stream.
const DefaultKeepAliveInterval = 15 * time.Second

// ChatStreamer defines the interface expected from the chat service.
type ChatStreamer interface {
	StreamChat(ctx context.Context, conversationID, message string) (<-chan generation.Event, error)
}

// ModelStatus reports engine readiness.
type ModelStatus interface {
	IsLoaded() bool
	ModelID() string
}

// ChatHandlers handles the streaming chat endpoint.
type ChatHandlers struct {
	chatService ChatStreamer
	model       ModelStatus
	logger      *slog.Logger

	KeepAliveInterval time.Duration
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService ChatStreamer, model ModelStatus, logger *slog.Logger) *ChatHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandlers{
		chatService:       chatService,
		model:             model,
		logger:            logger,
		KeepAliveInterval: DefaultKeepAliveInterval,
	}
}

// HandleChat handles POST /api/chat and streams the reply as SSE.
func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httputil.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusUnprocessableEntity, models.DescribeValidationError(err))
		return
	}

	if !h.model.IsLoaded() {
		httputil.RespondError(w, http.StatusServiceUnavailable, "Model is still loading")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		h.logger.Error("Streaming unsupported", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()
	logger := h.logger.With("conversation_id", req.ConversationID)
	if clientID, ok := auth.GetClientIDFromContext(ctx); ok {
		logger = logger.With("client_id", clientID)
	}

	events, err := h.chatService.StreamChat(ctx, req.ConversationID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrModelNotLoaded):
			httputil.RespondError(w, http.StatusServiceUnavailable, "Model is still loading")
		case ctx.Err() != nil:
			// Client already gone.
		default:
			logger.Error("Failed to start chat turn", "error", err)
			httputil.RespondError(w, http.StatusInternalServerError, "An internal error occurred. Please try again.")
		}
		return
	}

	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	keepAlive := time.NewTicker(h.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(ev); err != nil {
				logger.Warn("Client stream write failed", "error", err)
				return
			}
		case <-keepAlive.C:
			if err := sse.WriteKeepAlive(); err != nil {
				return
			}
		case <-ctx.Done():
			logger.Info("Client disconnected")
			return
		}
	}
}
