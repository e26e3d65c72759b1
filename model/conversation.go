package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole is the author of a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of a conversation. Assistant messages carry the full
// answer including its thinking steps.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Answer    *Answer     `json:"answer,omitempty"`
}

// Feedback is a user rating of the answers in a conversation
type Feedback struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Helpful        bool      `json:"helpful"`
	Text           string    `json:"text,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation is the persisted history of questions and answers under one id
type Conversation struct {
	ID          string     `json:"id"`
	Messages    []Message  `json:"messages"`
	Feedback    []Feedback `json:"feedback,omitempty"`
	Created     time.Time  `json:"created"`
	LastUpdated time.Time  `json:"last_updated"`
	Deleted     bool       `json:"deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// NewConversation creates an empty conversation
func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{ID: id, Created: now, LastUpdated: now}
}

// Append adds a message and updates the last update time
func (c *Conversation) Append(message Message) {
	c.Messages = append(c.Messages, message)
	if message.Timestamp.After(c.LastUpdated) {
		c.LastUpdated = message.Timestamp
	}
}

// LastUserQuery returns the content of the most recent user message
func (c *Conversation) LastUserQuery() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

// Steps returns the thinking steps of all answers in order
func (c *Conversation) Steps() []Step {
	var steps []Step
	for _, message := range c.Messages {
		if message.Answer != nil {
			steps = append(steps, message.Answer.Steps...)
		}
	}
	return steps
}
