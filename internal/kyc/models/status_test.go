package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	t.Run("only the next forward step is allowed", func(t *testing.T) {
		for i, from := range NonTerminalStatuses {
			for j, to := range AllStatuses {
				if to == StatusRejected {
					continue
				}
				assert.Equal(t, j == i+1, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("rejected reachable from every non-terminal state", func(t *testing.T) {
		for _, from := range NonTerminalStatuses {
			assert.True(t, from.CanTransitionTo(StatusRejected), from)
		}
	})

	t.Run("terminal states admit nothing", func(t *testing.T) {
		for _, to := range AllStatuses {
			assert.False(t, StatusCompleted.CanTransitionTo(to))
			assert.False(t, StatusRejected.CanTransitionTo(to))
		}
	})
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("ai_verified")
	assert.True(t, ok)
	assert.Equal(t, StatusAIVerified, s)

	_, ok = ParseStatus("pending")
	assert.False(t, ok)
}
