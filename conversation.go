package wikigraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

const conversationKeyPrefix = "conversation:"

var errNoConversationStore = model.NewCapabilityUnavailable("conversation store", errors.New("no conversation store configured"))

// WithConversationStore sets where conversations are kept.
// Without it conversations are kept in the response cache.
func WithConversationStore(store ResponseCache) Option {
	return func(w *WikiGraph) { w.conversations = store }
}

// Converse answers a question as part of a conversation and stores the
// question and the answer with its thinking steps. An empty conversationID
// starts a new conversation. Without a conversation store it behaves like Ask.
func (w *WikiGraph) Converse(ctx context.Context, conversationID string, query string) (*model.Answer, error) {
	answer, err := w.Ask(ctx, query)
	if err != nil {
		return nil, err
	}
	if w.conversations == nil {
		return answer, nil
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	answer.ConversationID = conversationID

	now := time.Now().UTC()
	err = w.updateConversation(ctx, conversationID, true, func(conversation *model.Conversation) error {
		conversation.Append(model.Message{Role: model.RoleUser, Content: answer.Query, Timestamp: now})
		conversation.Append(model.Message{Role: model.RoleAssistant, Content: answer.Answer, Timestamp: time.Now().UTC(), Answer: answer})
		return nil
	})
	if err != nil {
		w.log.Warn("Error saving conversation", slog.String("conversation", conversationID), slog.String("error", err.Error()))
	}
	return answer, nil
}

// Clarify answers the last question of a conversation again with the
// clarification the user gave
func (w *WikiGraph) Clarify(ctx context.Context, conversationID string, clarification string) (*model.Answer, error) {
	clarification = strings.TrimSpace(clarification)
	if clarification == "" {
		return nil, helper.NewError("clarify", fmt.Errorf("%w: clarification is empty", model.ErrInvalidInput))
	}

	conversation, err := w.Conversation(ctx, conversationID)
	if err != nil {
		return nil, helper.NewError("clarify", err)
	}
	original, ok := conversation.LastUserQuery()
	if !ok {
		return nil, helper.NewError("clarify", fmt.Errorf("%w: conversation %s has no question", model.ErrInvalidInput, conversationID))
	}

	return w.Converse(ctx, conversationID, fmt.Sprintf("%s (Clarification: %s)", original, clarification))
}

// Conversation returns a stored conversation. Deleted conversations are not found.
func (w *WikiGraph) Conversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if w.conversations == nil {
		return nil, errNoConversationStore
	}
	return w.loadConversation(ctx, conversationID)
}

// DeleteConversation marks a conversation as deleted. The record expires
// with the conversation ttl.
func (w *WikiGraph) DeleteConversation(ctx context.Context, conversationID string) error {
	return w.updateConversation(ctx, conversationID, false, func(conversation *model.Conversation) error {
		now := time.Now().UTC()
		conversation.Deleted = true
		conversation.DeletedAt = &now
		return nil
	})
}

// SubmitFeedback stores a user rating of the answers of a conversation
func (w *WikiGraph) SubmitFeedback(ctx context.Context, conversationID string, helpful bool, text string) (*model.Feedback, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, helper.NewError("submit feedback", fmt.Errorf("%w: conversation id is empty", model.ErrInvalidInput))
	}

	feedback := model.Feedback{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Helpful:        helpful,
		Text:           strings.TrimSpace(text),
		Timestamp:      time.Now().UTC(),
	}
	err := w.updateConversation(ctx, conversationID, false, func(conversation *model.Conversation) error {
		conversation.Feedback = append(conversation.Feedback, feedback)
		return nil
	})
	if err != nil {
		return nil, helper.NewError("submit feedback", err)
	}

	w.Prometheus.Feedback(helpful)
	w.log.Info("Feedback received", slog.String("conversation", conversationID), slog.Bool("helpful", helpful))
	return &feedback, nil
}

// updateConversation loads, modifies and saves a conversation under the
// conversation lock. With create a missing conversation is started.
func (w *WikiGraph) updateConversation(ctx context.Context, conversationID string, create bool, update func(*model.Conversation) error) error {
	if w.conversations == nil {
		return errNoConversationStore
	}

	w.conversationMu.Lock()
	defer w.conversationMu.Unlock()

	conversation, err := w.loadConversation(ctx, conversationID)
	if errors.Is(err, model.ErrNotFound) && create {
		conversation, err = model.NewConversation(conversationID, time.Now().UTC()), nil
	}
	if err != nil {
		return err
	}

	if err := update(conversation); err != nil {
		return err
	}
	return w.saveConversation(ctx, conversation)
}

func (w *WikiGraph) loadConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	value, ok, err := w.conversations.Get(ctx, conversationKeyPrefix+conversationID)
	if err != nil {
		return nil, helper.NewError("load conversation", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", model.ErrNotFound, conversationID)
	}

	conversation := &model.Conversation{}
	if err := json.Unmarshal(value, conversation); err != nil {
		return nil, helper.NewError("decode conversation", err)
	}
	if conversation.Deleted {
		return nil, fmt.Errorf("%w: conversation %s", model.ErrNotFound, conversationID)
	}
	return conversation, nil
}

func (w *WikiGraph) saveConversation(ctx context.Context, conversation *model.Conversation) error {
	value, err := json.Marshal(conversation)
	if err != nil {
		return helper.NewError("encode conversation", err)
	}
	if err := w.conversations.Set(ctx, conversationKeyPrefix+conversation.ID, value, w.Config.ConversationTTL); err != nil {
		return helper.NewError("save conversation", err)
	}
	return nil
}
