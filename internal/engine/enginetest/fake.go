// Package enginetest provides a scripted engine.Engine for tests.
package enginetest

import (
	"context"
	"io"
	"sync"

	"localchat-backend/internal/engine"
)

// Tokens builds one fragment per text, in order.
func Tokens(texts ...string) []engine.Fragment {
	frags := make([]engine.Fragment, 0, len(texts))
	for _, t := range texts {
		frags = append(frags, engine.Fragment{Content: t})
	}
	return frags
}

// Engine replays Fragments for every Generate call.
//
// When Err is set, Next returns it once FailAt fragments have been produced.
// When Gate is set, every Next waits for a value on Gate (or ctx cancellation)
// before producing, which lets tests step a run one fragment at a time.
type Engine struct {
	Fragments []engine.Fragment
	FailAt    int
	Err       error
	StartErr  error
	ReadyErr  error
	Gate      chan struct{}

	mu       sync.Mutex
	calls    [][]engine.ChatMessage
	params   []engine.Params
	closed   int
	readyHit int
}

// Generate records the call and returns a scripted stream.
func (e *Engine) Generate(ctx context.Context, messages []engine.ChatMessage, params engine.Params) (engine.FragmentStream, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]engine.ChatMessage(nil), messages...))
	e.params = append(e.params, params)
	e.mu.Unlock()

	if e.StartErr != nil {
		return nil, e.StartErr
	}
	return &stream{ctx: ctx, owner: e}, nil
}

// Ready returns ReadyErr.
func (e *Engine) Ready(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readyHit++
	return e.ReadyErr
}

// SetReadyErr changes the Ready result under the engine's lock.
func (e *Engine) SetReadyErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ReadyErr = err
}

// ReadyCalls reports how many times Ready was invoked.
func (e *Engine) ReadyCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyHit
}

// Calls returns the message sequences passed to Generate so far.
func (e *Engine) Calls() [][]engine.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]engine.ChatMessage(nil), e.calls...)
}

// Params returns the generation params passed to Generate so far.
func (e *Engine) Params() []engine.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Params(nil), e.params...)
}

// Closed reports how many streams have been closed.
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type stream struct {
	ctx   context.Context
	owner *Engine
	pos   int
}

func (s *stream) Next() (engine.Fragment, error) {
	if s.owner.Gate != nil {
		select {
		case <-s.owner.Gate:
		case <-s.ctx.Done():
			return engine.Fragment{}, s.ctx.Err()
		}
	}
	if s.owner.Err != nil && s.pos == s.owner.FailAt {
		return engine.Fragment{}, s.owner.Err
	}
	if s.pos >= len(s.owner.Fragments) {
		return engine.Fragment{}, io.EOF
	}
	frag := s.owner.Fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *stream) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.owner.closed++
	return nil
}

var _ engine.Engine = (*Engine)(nil)
