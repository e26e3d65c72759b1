package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Append keeps order and moves last update", func(t *testing.T) {
		conversation := NewConversation("c-1", start)
		conversation.Append(Message{Role: RoleUser, Content: "How do I enable SSO?", Timestamp: start.Add(time.Second)})
		conversation.Append(Message{Role: RoleAssistant, Content: "Open the admin console.", Timestamp: start.Add(2 * time.Second)})

		require.Len(t, conversation.Messages, 2)
		assert.Equal(t, start, conversation.Created)
		assert.Equal(t, start.Add(2*time.Second), conversation.LastUpdated)
	})

	t.Run("LastUserQuery skips assistant messages", func(t *testing.T) {
		conversation := NewConversation("c-1", start)
		_, ok := conversation.LastUserQuery()
		assert.False(t, ok, "Expected no question in an empty conversation")

		conversation.Append(Message{Role: RoleUser, Content: "first"})
		conversation.Append(Message{Role: RoleAssistant, Content: "answer"})
		conversation.Append(Message{Role: RoleUser, Content: "second"})
		conversation.Append(Message{Role: RoleAssistant, Content: "answer"})

		query, ok := conversation.LastUserQuery()
		require.True(t, ok)
		assert.Equal(t, "second", query)
	})

	t.Run("Steps collects the steps of all answers", func(t *testing.T) {
		conversation := NewConversation("c-1", start)
		conversation.Append(Message{Role: RoleUser, Content: "q"})
		conversation.Append(Message{Role: RoleAssistant, Answer: &Answer{Steps: []Step{{State: StatePlanning}, {State: StateDone}}}})
		conversation.Append(Message{Role: RoleAssistant, Answer: &Answer{Cached: true}})

		steps := conversation.Steps()
		require.Len(t, steps, 2)
		assert.Equal(t, StatePlanning, steps[0].State)
	})
}
