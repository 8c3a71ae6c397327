package services

import (
	"context"
	"fmt"

	"localchat-backend/internal/models"
	"localchat-backend/internal/store"
)

// ConversationService handles conversation browsing and deletion.
type ConversationService struct {
	store store.ConversationStore
}

// NewConversationService creates a new ConversationService.
func NewConversationService(store store.ConversationStore) *ConversationService {
	return &ConversationService{store: store}
}

// ListConversations returns all conversations, most recently updated first.
func (s *ConversationService) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	return list, nil
}

// GetConversation returns the full conversation.
// Returns store.ErrNotFound (wrapped) if it does not exist.
func (s *ConversationService) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return conv, nil
}

// DeleteConversation removes a conversation.
// Returns store.ErrNotFound (wrapped) if it does not exist.
func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}
