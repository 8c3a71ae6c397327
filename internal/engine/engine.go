// Package engine defines the boundary to the text-generation engine and
// ships an implementation backed by an OpenAI-compatible local server.
package engine

import (
	"context"
	"errors"

	"localchat-backend/internal/models"
)

// ErrNotReady is returned by Ready while the engine is still loading its model.
var ErrNotReady = errors.New("engine not ready")

// ChatMessage is a role-tagged entry of the sequence handed to the engine.
type ChatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Params carries the sampling knobs for one generation run.
type Params struct {
	MaxTokens         int
	Temperature       float32
	TopP              float32
	RepetitionPenalty float32
}

// Usage is the optional token accounting an engine reports at the end of a run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Fragment is one item produced by the engine. Content may be empty for
// keep-alive deltas; Usage is set only on the summary fragment, if any.
type Fragment struct {
	Content string
	Usage   *Usage
}

// FragmentStream is a blocking, single-use sequence of fragments.
// Next returns io.EOF once the engine is exhausted.
type FragmentStream interface {
	Next() (Fragment, error)
	Close() error
}

// Engine produces fragment streams from a message sequence.
type Engine interface {
	// Generate starts a fresh run. Cancelling ctx abandons the run.
	Generate(ctx context.Context, messages []ChatMessage, params Params) (FragmentStream, error)
	// Ready returns nil once the engine can serve Generate calls.
	Ready(ctx context.Context) error
}
