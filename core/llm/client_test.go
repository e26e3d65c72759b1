package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// mockModel answers with the queued responses and records the messages it got
type mockModel struct {
	responses []string
	err       error
	messages  [][]llms.MessageContent
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = append(m.messages, messages)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: response}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestClient(chat llms.Model) *Client {
	return NewClientWithModel(chat, 0, helper.NewLogger(io.Discard, slog.LevelDebug))
}

func textOf(message llms.MessageContent) string {
	var text string
	for _, part := range message.Parts {
		if textPart, ok := part.(llms.TextContent); ok {
			text += textPart.Text
		}
	}
	return text
}

func testChunks() []*model.ScoredChunk {
	return []*model.ScoredChunk{{
		Hit: &model.SearchHit{ChunkID: uuid.New(), NodeID: "sso", Title: "SSO Setup", Text: "Open Settings > Authentication."},
	}}
}

func TestClassify(t *testing.T) {
	t.Run("Returns the raw answer", func(t *testing.T) {
		chat := &mockModel{responses: []string{`{"classification":"atomic"}`}}
		raw, err := newTestClient(chat).Classify(context.Background(), "How do I enable SSO?", "")
		require.NoError(t, err)
		assert.JSONEq(t, `{"classification":"atomic"}`, string(raw))

		require.Len(t, chat.messages, 1)
		require.Len(t, chat.messages[0], 2, "Expected system and question messages")
		assert.Equal(t, llms.ChatMessageTypeSystem, chat.messages[0][0].Role)
		assert.Equal(t, "How do I enable SSO?", textOf(chat.messages[0][1]))
	})

	t.Run("Feedback is sent as reprompt", func(t *testing.T) {
		chat := &mockModel{responses: []string{`{}`}}
		_, err := newTestClient(chat).Classify(context.Background(), "q", "schema violation: missing classification")
		require.NoError(t, err)
		require.Len(t, chat.messages[0], 3)
		assert.Contains(t, textOf(chat.messages[0][2]), "schema violation: missing classification")
	})

	t.Run("Transport error is an unavailable capability", func(t *testing.T) {
		chat := &mockModel{err: errors.New("503 service unavailable")}
		_, err := newTestClient(chat).Classify(context.Background(), "q", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrCapabilityUnavailable))
	})

	t.Run("No choices is an error", func(t *testing.T) {
		_, err := newTestClient(&mockModel{}).Classify(context.Background(), "q", "")
		assert.Error(t, err)
	})
}

func TestSynthesize(t *testing.T) {
	t.Run("Sends cited context and trims the answer", func(t *testing.T) {
		chat := &mockModel{responses: []string{"  Go to Settings [[sso-1]].  "}}
		answer, err := newTestClient(chat).Synthesize(context.Background(), "How do I enable SSO?", testChunks())
		require.NoError(t, err)
		assert.Equal(t, "Go to Settings [[sso-1]].", answer)

		prompt := textOf(chat.messages[0][1])
		assert.Contains(t, prompt, "[[sso-")
		assert.Contains(t, prompt, "Open Settings > Authentication.")
		assert.Contains(t, prompt, "Question: How do I enable SSO?")
	})
}

func TestVerify(t *testing.T) {
	t.Run("Parses the verification", func(t *testing.T) {
		chat := &mockModel{responses: []string{"```json\n" + `{"risk":true,"risk_level":"medium","reason":"unsupported claim","issues_found":["Okta is not mentioned"]}` + "\n```"}}
		verification, err := newTestClient(chat).Verify(context.Background(), "Use Okta.", testChunks())
		require.NoError(t, err)
		assert.True(t, verification.Risk)
		assert.Equal(t, "medium", verification.RiskLevel)
		assert.Equal(t, []string{"Okta is not mentioned"}, verification.Issues)
	})

	t.Run("Unparseable verification is a risk", func(t *testing.T) {
		chat := &mockModel{responses: []string{"looks fine to me"}}
		verification, err := newTestClient(chat).Verify(context.Background(), "Use Okta.", testChunks())
		require.NoError(t, err)
		assert.True(t, verification.Risk)
	})
}

func TestNewClientConfiguration(t *testing.T) {
	t.Run("Requires a model", func(t *testing.T) {
		t.Setenv("WIKIGRAPH_LLM_MODEL", "")
		_, err := NewClientConfiguration()
		assert.Error(t, err)
	})

	t.Run("Reads environment", func(t *testing.T) {
		t.Setenv("WIKIGRAPH_LLM_MODEL", "gpt-4o-mini")
		t.Setenv("WIKIGRAPH_LLM_BASE_URL", "http://localhost:11434/v1")
		t.Setenv("WIKIGRAPH_LLM_TOKEN", "")
		t.Setenv("WIKIGRAPH_LLM_RPM", "120")

		config, err := NewClientConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", config.Model)
		assert.Equal(t, "none", config.Token)
		assert.Equal(t, 120, config.RequestsPerMinute)

		client, err := NewClient(config, nil)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}
