package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat-backend/internal/engine"
	"localchat-backend/internal/engine/enginetest"
	"localchat-backend/internal/metrics"
	"localchat-backend/internal/models"
)

// stepClock returns start on its first call and start+elapsed afterwards.
type stepClock struct {
	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
	calls   int
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 1 {
		return c.start
	}
	return c.start.Add(c.elapsed)
}

func newTestBridge(elapsed time.Duration, limit time.Duration) (*Bridge, *bytesLog) {
	bl := newBytesLog()
	clock := &stepClock{start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), elapsed: elapsed}
	return NewBridge(BridgeConfig{
		Budget:        NewBudgetMonitor(limit, bl.logger),
		MaxConcurrent: 2,
		Logger:        bl.logger,
		Now:           clock.Now,
	}), bl
}

type bytesLog struct {
	logger *slog.Logger
	buf    *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func newBytesLog() *bytesLog {
	sb := &syncBuffer{}
	return &bytesLog{logger: slog.New(slog.NewJSONHandler(sb, nil)), buf: sb}
}

func startWith(eng engine.Engine) StartFunc {
	history := []engine.ChatMessage{{Role: models.RoleUser, Content: "hi"}}
	return func(ctx context.Context) (engine.FragmentStream, error) {
		return eng.Generate(ctx, history, engine.Params{})
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not close; got %v so far", out)
		}
	}
}

func TestBridgeTokensThenMetadata(t *testing.T) {
	bridge, _ := newTestBridge(1200*time.Millisecond, 30*time.Second)
	eng := &enginetest.Engine{Fragments: enginetest.Tokens("Hel", "lo")}

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	assert.Equal(t, []Event{
		TokenEvent{Text: "Hel"},
		TokenEvent{Text: "lo"},
		MetadataEvent{TokensGenerated: 2, ElapsedSeconds: 1.2},
	}, events)
	assert.Equal(t, 1, eng.Closed())
}

func TestBridgeSkipsEmptyFragments(t *testing.T) {
	bridge, _ := newTestBridge(time.Second, 30*time.Second)
	eng := &enginetest.Engine{Fragments: []engine.Fragment{
		{Content: ""},
		{Content: "a"},
		{Content: ""},
		{Content: "b"},
		{Usage: &engine.Usage{PromptTokens: 3, CompletionTokens: 2}},
	}}

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	assert.Equal(t, []Event{
		TokenEvent{Text: "a"},
		TokenEvent{Text: "b"},
		MetadataEvent{TokensGenerated: 2, ElapsedSeconds: 1},
	}, events)
}

func TestBridgeEmptyRunStillReportsMetadata(t *testing.T) {
	bridge, _ := newTestBridge(time.Second, 30*time.Second)
	eng := &enginetest.Engine{}

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	assert.Equal(t, []Event{MetadataEvent{TokensGenerated: 0, ElapsedSeconds: 1}}, events)
}

func TestBridgeMidStreamFailure(t *testing.T) {
	bridge, _ := newTestBridge(time.Second, 30*time.Second)
	boom := errors.New("llama_decode failed")
	eng := &enginetest.Engine{Fragments: enginetest.Tokens("one", "two"), FailAt: 1, Err: boom}
	before := testutil.ToFloat64(metrics.GenerationFailures)

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	require.Len(t, events, 2)
	assert.Equal(t, TokenEvent{Text: "one"}, events[0])
	errEv, ok := events[1].(ErrorEvent)
	require.True(t, ok, "want ErrorEvent, got %T", events[1])
	assert.ErrorIs(t, errEv.Err, boom)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GenerationFailures))
	assert.Equal(t, 1, eng.Closed())
}

func TestBridgeStartFailure(t *testing.T) {
	bridge, _ := newTestBridge(time.Second, 30*time.Second)
	eng := &enginetest.Engine{StartErr: errors.New("context window exceeded")}

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	require.Len(t, events, 1)
	_, ok := events[0].(ErrorEvent)
	assert.True(t, ok)
}

func TestBridgeOverrunStillDelivers(t *testing.T) {
	bridge, bl := newTestBridge(45*time.Second, 30*time.Second)
	texts := make([]string, 80)
	for i := range texts {
		texts[i] = "t"
	}
	eng := &enginetest.Engine{Fragments: enginetest.Tokens(texts...)}

	events := collect(t, bridge.Stream(context.Background(), startWith(eng)))

	require.Len(t, events, 81)
	assert.Equal(t, MetadataEvent{TokensGenerated: 80, ElapsedSeconds: 45}, events[80])
	assert.Contains(t, bl.buf.String(), "Generation exceeded budget")
}

func TestBridgeCancelClosesWithoutTerminalEvent(t *testing.T) {
	bridge, _ := newTestBridge(time.Second, 30*time.Second)
	gate := make(chan struct{})
	eng := &enginetest.Engine{Fragments: enginetest.Tokens("a", "b", "c"), Gate: gate}

	ctx, cancel := context.WithCancel(context.Background())
	events := bridge.Stream(ctx, startWith(eng))

	gate <- struct{}{}
	first := <-events
	assert.Equal(t, TokenEvent{Text: "a"}, first)

	cancel()
	rest := collect(t, events)
	for _, ev := range rest {
		switch ev.(type) {
		case MetadataEvent, ErrorEvent:
			t.Fatalf("unexpected terminal event after cancel: %#v", ev)
		}
	}
	assert.Eventually(t, func() bool { return eng.Closed() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBridgeBoundsConcurrentRuns(t *testing.T) {
	bridge := NewBridge(BridgeConfig{MaxConcurrent: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	gate := make(chan struct{})
	blocked := &enginetest.Engine{Fragments: enginetest.Tokens("x"), Gate: gate}
	second := &enginetest.Engine{Fragments: enginetest.Tokens("y")}

	first := bridge.Stream(context.Background(), startWith(blocked))
	assert.Eventually(t, func() bool { return len(blocked.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	waiting := collect(t, bridge.Stream(ctx, startWith(second)))
	assert.Empty(t, waiting, "second run must not start while the slot is held")
	assert.Empty(t, second.Calls())

	close(gate)
	assert.Len(t, collect(t, first), 2)
}

func TestBridgeElapsedIncludesSlotWait(t *testing.T) {
	bridge := NewBridge(BridgeConfig{MaxConcurrent: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	gate := make(chan struct{})
	blocked := &enginetest.Engine{Fragments: enginetest.Tokens("x"), Gate: gate}
	queued := &enginetest.Engine{Fragments: enginetest.Tokens("y")}

	first := bridge.Stream(context.Background(), startWith(blocked))
	assert.Eventually(t, func() bool { return len(blocked.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	second := bridge.Stream(context.Background(), startWith(queued))

	time.Sleep(80 * time.Millisecond)
	close(gate)
	collect(t, first)

	events := collect(t, second)
	require.Len(t, events, 2)
	meta, ok := events[1].(MetadataEvent)
	require.True(t, ok)
	assert.GreaterOrEqual(t, meta.ElapsedSeconds, 0.05)
}
