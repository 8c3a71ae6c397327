// Package memory implements store.ConversationStore in process memory.
// Conversations live for the lifetime of the process.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"localchat-backend/internal/engine"
	"localchat-backend/internal/models"
	"localchat-backend/internal/store"
)

// Compile-time check to ensure MemoryStore implements store.ConversationStore
var _ store.ConversationStore = (*MemoryStore)(nil)

type entry struct {
	conv models.Conversation
	// seq orders updates that share a timestamp.
	seq uint64
}

type MemoryStore struct {
	mu     sync.RWMutex
	convs  map[string]*entry
	seq    uint64
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(logger *slog.Logger, opts ...Option) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		convs:  make(map[string]*entry),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getOrCreateLocked must be called with mu held for writing.
func (s *MemoryStore) getOrCreateLocked(id string) *entry {
	if e, ok := s.convs[id]; ok {
		return e
	}
	ts := s.now()
	s.seq++
	e := &entry{
		conv: models.Conversation{
			ID:        id,
			Title:     store.DefaultTitle,
			Messages:  []models.Message{},
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		seq: s.seq,
	}
	s.convs[id] = e
	s.logger.Info("Created conversation", "conversation_id", id)
	return e
}

// GetOrCreate returns a snapshot of the conversation, creating it if absent.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(&s.getOrCreateLocked(id).conv), nil
}

// AddMessage appends a message and bumps updated_at. The first message
// names the conversation when it comes from the user.
func (s *MemoryStore) AddMessage(ctx context.Context, id string, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(id)
	msg := models.Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	e.conv.Messages = append(e.conv.Messages, msg)
	e.conv.UpdatedAt = msg.Timestamp
	s.seq++
	e.seq = s.seq

	if role == models.RoleUser && len(e.conv.Messages) == 1 {
		e.conv.Title = deriveTitle(content)
	}
	return &msg, nil
}

// GetHistory returns the system prompt followed by the stored messages.
func (s *MemoryStore) GetHistory(ctx context.Context, id string) ([]engine.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []engine.ChatMessage{{Role: models.RoleSystem, Content: store.SystemPrompt}}
	e, ok := s.convs[id]
	if !ok {
		return history, nil
	}
	for _, m := range e.conv.Messages {
		history = append(history, engine.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// Get returns a snapshot of the conversation.
// Returns store.ErrNotFound if the conversation does not exist.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return snapshot(&e.conv), nil
}

// List returns conversation summaries, most recently updated first.
func (s *MemoryStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.convs))
	for _, e := range s.convs {
		entries = append(entries, e)
	}
	summaries := make([]models.ConversationSummary, 0, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.conv.UpdatedAt.Equal(b.conv.UpdatedAt) {
			return a.conv.UpdatedAt.After(b.conv.UpdatedAt)
		}
		return a.seq > b.seq
	})
	for _, e := range entries {
		summaries = append(summaries, e.conv.Summary())
	}
	s.mu.RUnlock()
	return summaries, nil
}

// Delete removes the conversation.
// Returns store.ErrNotFound if the conversation does not exist.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.convs, id)
	s.logger.Info("Deleted conversation", "conversation_id", id)
	return nil
}

func snapshot(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Messages = append([]models.Message(nil), c.Messages...)
	if cp.Messages == nil {
		cp.Messages = []models.Message{}
	}
	return &cp
}

// deriveTitle keeps the first TitleLength characters of content.
func deriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= store.TitleLength {
		return strings.TrimSpace(content)
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:store.TitleLength])) + "..."
}
