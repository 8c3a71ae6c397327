package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"localchat-backend/internal/models"
	"localchat-backend/internal/store"
	"localchat-backend/pkg/httputil"
)

// ConversationService defines the interface expected from the conversation service.
type ConversationService interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

type ConversationHandler struct {
	conversationService ConversationService
	logger              *slog.Logger
}

func NewConversationHandler(svc ConversationService, logger *slog.Logger) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{
		conversationService: svc,
		logger:              logger,
	}
}

// HandleListConversations handles GET /api/conversations
func (h *ConversationHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversationService.ListConversations(r.Context())
	if err != nil {
		h.logger.Error("Failed to list conversations", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

// HandleGetConversation handles GET /api/conversations/{conversationID}
func (h *ConversationHandler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	conv, err := h.conversationService.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.Error("Failed to get conversation", "conversation_id", id, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// HandleDeleteConversation handles DELETE /api/conversations/{conversationID}
func (h *ConversationHandler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	if err := h.conversationService.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.Error("Failed to delete conversation", "conversation_id", id, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.DetailResponse{Detail: "Conversation deleted"})
}
