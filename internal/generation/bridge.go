package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"localchat-backend/internal/engine"
	"localchat-backend/internal/metrics"
)

// StartFunc opens a fresh engine run. It is called on the bridge's producer
// goroutine, never on the consumer's.
type StartFunc func(ctx context.Context) (engine.FragmentStream, error)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Budget *BudgetMonitor
	// MaxConcurrent bounds the number of runs talking to the engine at once.
	// Zero means unbounded.
	MaxConcurrent int64
	Logger        *slog.Logger
	// Now is the clock used to time runs. Defaults to time.Now.
	Now func() time.Time
}

// Bridge adapts the engine's blocking fragment loop into a channel of events.
//
// Each Stream call owns one producer goroutine that pulls fragments and hands
// them to the consumer one at a time over an unbuffered channel, so a slow run
// only ever blocks its own goroutine.
type Bridge struct {
	budget *BudgetMonitor
	slots  *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time
}

// NewBridge creates a Bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	b := &Bridge{
		budget: cfg.Budget,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if cfg.MaxConcurrent > 0 {
		b.slots = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.budget == nil {
		b.budget = NewBudgetMonitor(30*time.Second, b.logger)
	}
	return b
}

// Stream starts a run and returns its events.
//
// A run that completes yields TokenEvents followed by exactly one
// MetadataEvent. A run that fails yields exactly one ErrorEvent after whatever
// tokens were already produced. If ctx is cancelled the channel is closed
// without a terminal event. The channel is always closed.
//
// The elapsed time in MetadataEvent runs from the Stream call, so it includes
// any wait for a free engine slot.
func (b *Bridge) Stream(ctx context.Context, start StartFunc) <-chan Event {
	out := make(chan Event)
	go b.produce(ctx, start, out)
	return out
}

func (b *Bridge) produce(ctx context.Context, start StartFunc, out chan<- Event) {
	defer close(out)

	begin := b.now()
	if b.slots != nil {
		if err := b.slots.Acquire(ctx, 1); err != nil {
			b.logger.Debug("Gave up waiting for an engine slot", "error", err)
			return
		}
		defer b.slots.Release(1)
	}
	metrics.GenerationsInFlight.Inc()
	defer metrics.GenerationsInFlight.Dec()

	stream, err := start(ctx)
	if err != nil {
		b.fail(ctx, out, err)
		return
	}
	defer stream.Close()

	tokens := 0
	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			b.fail(ctx, out, err)
			return
		}
		if frag.Usage != nil {
			b.logger.Debug("Engine usage summary",
				"prompt_tokens", frag.Usage.PromptTokens,
				"completion_tokens", frag.Usage.CompletionTokens,
			)
		}
		if frag.Content == "" {
			continue
		}
		tokens++
		metrics.TokensGenerated.Inc()
		if !send(ctx, out, TokenEvent{Text: frag.Content}) {
			return
		}
	}

	elapsed := b.now().Sub(begin)
	b.budget.Check(elapsed, tokens)
	metrics.GenerationDuration.Observe(elapsed.Seconds())

	send(ctx, out, MetadataEvent{
		TokensGenerated: tokens,
		ElapsedSeconds:  roundSeconds(elapsed),
	})
}

// fail reports an engine error unless the failure is just the caller going away.
func (b *Bridge) fail(ctx context.Context, out chan<- Event, err error) {
	if ctx.Err() != nil {
		return
	}
	metrics.GenerationFailures.Inc()
	send(ctx, out, ErrorEvent{Message: err.Error(), Err: err})
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
