// Package generation turns a conversation history into a stream of
// generation events: history shaping, the blocking-engine bridge, and the
// post-run time budget check.
package generation

import "encoding/json"

// Event is one item of a generation stream. The set of variants is closed:
// TokenEvent, MetadataEvent, ErrorEvent and DoneEvent.
type Event interface {
	// Name is the wire event name.
	Name() string
	// Payload is the wire data for the event.
	Payload() string
	isEvent()
}

// TokenEvent carries one non-empty text fragment.
type TokenEvent struct {
	Text string
}

// MetadataEvent terminates a successful run.
type MetadataEvent struct {
	TokensGenerated int     `json:"tokens_generated"`
	ElapsedSeconds  float64 `json:"elapsed_s"`
}

// ErrorEvent terminates a failed run. Err holds the internal cause and is
// never sent to clients; Message is the client-facing text.
type ErrorEvent struct {
	Message string
	Err     error
}

// DoneEvent is the transport-level end-of-stream sentinel.
type DoneEvent struct{}

func (TokenEvent) Name() string    { return "token" }
func (MetadataEvent) Name() string { return "metadata" }
func (ErrorEvent) Name() string    { return "error" }
func (DoneEvent) Name() string     { return "done" }

func (e TokenEvent) Payload() string { return e.Text }

func (e MetadataEvent) Payload() string {
	b, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (e ErrorEvent) Payload() string { return e.Message }
func (DoneEvent) Payload() string    { return "" }

func (TokenEvent) isEvent()    {}
func (MetadataEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
func (DoneEvent) isEvent()     {}
