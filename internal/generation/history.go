package generation

import (
	"localchat-backend/internal/engine"
	"localchat-backend/internal/models"
)

// ShapeHistory bounds a message sequence for the engine.
//
// Sequences no longer than limit are returned as-is. Otherwise every system
// message is kept, followed by the most recent limit-len(system) non-system
// messages, each group in its original order. When the system messages alone
// reach limit, all non-system messages are dropped and the result is longer
// than limit.
//
// The input is never modified.
func ShapeHistory(messages []engine.ChatMessage, limit int) []engine.ChatMessage {
	if len(messages) <= limit {
		return messages
	}

	var system, other []engine.ChatMessage
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m)
		} else {
			other = append(other, m)
		}
	}

	keep := limit - len(system)
	if keep < 0 {
		keep = 0
	}
	if keep > len(other) {
		keep = len(other)
	}

	shaped := make([]engine.ChatMessage, 0, len(system)+keep)
	shaped = append(shaped, system...)
	return append(shaped, other[len(other)-keep:]...)
}
