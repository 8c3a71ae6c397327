package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventWireForm(t *testing.T) {
	cases := []struct {
		ev      Event
		name    string
		payload string
	}{
		{TokenEvent{Text: "Hel"}, "token", "Hel"},
		{MetadataEvent{TokensGenerated: 2, ElapsedSeconds: 1.2}, "metadata", `{"tokens_generated":2,"elapsed_s":1.2}`},
		{ErrorEvent{Message: "Generation failed. Please try again."}, "error", "Generation failed. Please try again."},
		{DoneEvent{}, "done", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.ev.Name())
		assert.Equal(t, tc.payload, tc.ev.Payload())
	}
}
