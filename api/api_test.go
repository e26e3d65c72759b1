package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/siherrmann/wikigraph/model"
)

type mockService struct {
	answer          *model.Answer
	err             error
	tree            string
	treeErr         error
	queries         []string
	conversationIDs []string
	highlight       []string

	conversation   *model.Conversation
	clarifications []string
	deleted        []string
	feedback       []*model.Feedback
}

func (m *mockService) Converse(ctx context.Context, conversationID string, query string) (*model.Answer, error) {
	m.queries = append(m.queries, query)
	m.conversationIDs = append(m.conversationIDs, conversationID)
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockService) Clarify(ctx context.Context, conversationID string, clarification string) (*model.Answer, error) {
	m.clarifications = append(m.clarifications, clarification)
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockService) Conversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if m.conversation == nil || m.conversation.ID != conversationID {
		return nil, fmt.Errorf("%w: conversation %s", model.ErrNotFound, conversationID)
	}
	return m.conversation, nil
}

func (m *mockService) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := m.Conversation(ctx, conversationID); err != nil {
		return err
	}
	m.deleted = append(m.deleted, conversationID)
	return nil
}

func (m *mockService) SubmitFeedback(ctx context.Context, conversationID string, helpful bool, text string) (*model.Feedback, error) {
	if _, err := m.Conversation(ctx, conversationID); err != nil {
		return nil, err
	}
	feedback := &model.Feedback{ID: uuid.New(), ConversationID: conversationID, Helpful: helpful, Text: text}
	m.feedback = append(m.feedback, feedback)
	return feedback, nil
}

func (m *mockService) PageTree(ctx context.Context, spaceID string, highlight ...string) (string, error) {
	m.highlight = highlight
	if m.treeErr != nil {
		return "", m.treeErr
	}
	return m.tree, nil
}

var unavailableIndex = fmt.Errorf("ask: %w", model.NewCapabilityUnavailable("document index", errors.New("connection refused")))

func fallbackAnswer() *model.Answer {
	return &model.Answer{
		Query:      "How do I rotate the Okta token?",
		Answer:     "I couldn't find a confident answer. You may find it under: SSO Guide > Okta Setup",
		Kind:       model.VerdictHierarchyFallback,
		Confidence: 0.4,
		Sources:    []string{"okta"},
		Breadcrumbs: []model.Breadcrumb{
			{NodeID: "okta", Title: "Okta Setup", Depth: 1},
			{NodeID: "sso", Title: "SSO Guide", Depth: 0},
		},
	}
}
