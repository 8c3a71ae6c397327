package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"localchat-backend/internal/engine"
	"localchat-backend/internal/generation"
	"localchat-backend/internal/models"
	"localchat-backend/internal/store"
)

// generationFailedMessage is the only failure detail clients ever see.
const generationFailedMessage = "Generation failed. Please try again."

// Generator starts generation runs over a conversation history.
type Generator interface {
	IsLoaded() bool
	GenerateStream(ctx context.Context, history []engine.ChatMessage) (<-chan generation.Event, error)
}

// ChatService runs one chat turn: it records the user message, streams the
// reply, and records the assistant message once the run completes.
type ChatService struct {
	store     store.ConversationStore
	generator Generator
	locks     *conversationLocks
	logger    *slog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(store store.ConversationStore, generator Generator, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		store:     store,
		generator: generator,
		locks:     newConversationLocks(),
		logger:    logger,
	}
}

// StreamChat starts a chat turn and returns its events.
//
// The stream ends with Metadata then Done on success, or Error then Done on
// failure. If ctx is cancelled the channel closes early and the partial
// reply is discarded. The user message is recorded before generation starts
// and is kept regardless of the outcome.
func (s *ChatService) StreamChat(ctx context.Context, conversationID, message string) (<-chan generation.Event, error) {
	if !s.generator.IsLoaded() {
		return nil, ErrModelNotLoaded
	}

	unlock, err := s.locks.acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.AddMessage(ctx, conversationID, models.RoleUser, message); err != nil {
		unlock()
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}
	history, err := s.store.GetHistory(ctx, conversationID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	events, err := s.generator.GenerateStream(ctx, history)
	if err != nil {
		unlock()
		return nil, err
	}

	out := make(chan generation.Event)
	go func() {
		defer unlock()
		defer close(out)
		s.relay(ctx, conversationID, utf8.RuneCountInString(message), events, out)
	}()
	return out, nil
}

func (s *ChatService) relay(ctx context.Context, conversationID string, inputLength int, events <-chan generation.Event, out chan<- generation.Event) {
	var reply strings.Builder

	for ev := range events {
		switch e := ev.(type) {
		case generation.TokenEvent:
			reply.WriteString(e.Text)
			if !forward(ctx, out, e) {
				return
			}

		case generation.MetadataEvent:
			if ctx.Err() != nil {
				return
			}
			if reply.Len() > 0 {
				if _, err := s.store.AddMessage(ctx, conversationID, models.RoleAssistant, reply.String()); err != nil {
					s.logger.Error("Failed to record assistant message",
						"conversation_id", conversationID,
						"error", err,
					)
					s.failTurn(ctx, out, err)
					return
				}
			}
			if forward(ctx, out, e) {
				forward(ctx, out, generation.DoneEvent{})
			}
			return

		case generation.ErrorEvent:
			s.logger.Error("Streaming failed",
				"conversation_id", conversationID,
				"input_length", inputLength,
				"error", e.Err,
			)
			s.failTurn(ctx, out, e.Err)
			return
		}
	}

	s.logger.Info("Generation abandoned by client",
		"conversation_id", conversationID,
		"partial_length", reply.Len(),
	)
}

func (s *ChatService) failTurn(ctx context.Context, out chan<- generation.Event, cause error) {
	if forward(ctx, out, generation.ErrorEvent{Message: generationFailedMessage, Err: cause}) {
		forward(ctx, out, generation.DoneEvent{})
	}
}

func forward(ctx context.Context, out chan<- generation.Event, ev generation.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// conversationLocks serializes turns on the same conversation id.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	ch   chan struct{}
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*conversationLock)}
}

// acquire blocks until the id is free or ctx ends. The returned func releases it.
func (l *conversationLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &conversationLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(id, lk, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(id, lk, true) })
	}, nil
}

func (l *conversationLocks) release(id string, lk *conversationLock, held bool) {
	if held {
		<-lk.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}
