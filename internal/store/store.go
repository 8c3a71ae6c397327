package store

import (
	"context"
	"errors"

	"localchat-backend/internal/engine"
	"localchat-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRole is returned when a message carries an unknown role.
var ErrInvalidRole = errors.New("invalid message role")

// SystemPrompt is prepended to every history handed to the engine.
const SystemPrompt = "You are a helpful, friendly AI assistant. Answer the user's questions " +
	"directly and accurately. If you don't know something, say so honestly. " +
	"Keep responses concise unless the user asks for detail."

// DefaultTitle is the title of a conversation before its first user message.
const DefaultTitle = "New conversation"

// TitleLength is the number of characters of the first user message kept as title.
const TitleLength = 50

// ConversationStore defines the operations on conversation logs.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// GetOrCreate returns the conversation with id, creating an empty one if absent.
	GetOrCreate(ctx context.Context, id string) (*models.Conversation, error)
	// AddMessage appends a message, creating the conversation if needed.
	// Unknown roles are rejected with ErrInvalidRole.
	AddMessage(ctx context.Context, id string, role models.Role, content string) (*models.Message, error)
	// GetHistory returns the system prompt followed by the conversation's messages.
	// Unknown ids yield just the system prompt.
	GetHistory(ctx context.Context, id string) ([]engine.ChatMessage, error)
	// Get returns a snapshot of the conversation or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// List returns conversation summaries, most recently updated first.
	List(ctx context.Context) ([]models.ConversationSummary, error)
	// Delete removes the conversation or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
