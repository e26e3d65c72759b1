package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(service Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := helper.NewMetrics()
	metrics.Reprompt()
	return NewRouter(service, metrics.Registry, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(router http.Handler, method string, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAskRoute(t *testing.T) {
	t.Run("Returns the answer as JSON", func(t *testing.T) {
		service := &mockService{answer: fallbackAnswer()}
		rec := serve(newTestRouter(service), http.MethodPost, "/ask", `{"query":"How do I rotate the Okta token?"}`)

		require.Equal(t, http.StatusOK, rec.Code, "Expected status OK, body: %s", rec.Body.String())
		var answer model.Answer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
		assert.Equal(t, model.VerdictHierarchyFallback, answer.Kind)
		assert.Equal(t, []string{"okta"}, answer.Sources)
		assert.Equal(t, []string{"How do I rotate the Okta token?"}, service.queries)
		assert.Equal(t, []string{""}, service.conversationIDs, "Expected a new conversation without id")
	})

	t.Run("Continues a given conversation", func(t *testing.T) {
		service := &mockService{answer: fallbackAnswer()}
		rec := serve(newTestRouter(service), http.MethodPost, "/ask", `{"query":"And for Azure AD?","conversation_id":"c-1"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"c-1"}, service.conversationIDs)
	})

	t.Run("Rejects missing or blank query", func(t *testing.T) {
		service := &mockService{answer: fallbackAnswer()}
		router := newTestRouter(service)

		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/ask", `{}`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/ask", `{"query":"   "}`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/ask", `not json`).Code)
		assert.Empty(t, service.queries, "Expected no call for invalid requests")
	})

	t.Run("Maps unavailable capabilities to 503", func(t *testing.T) {
		rec := serve(newTestRouter(&mockService{err: unavailableIndex}), http.MethodPost, "/ask", `{"query":"q"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "document index unavailable")
	})
}

func TestTreeRoute(t *testing.T) {
	t.Run("Renders markdown with highlights", func(t *testing.T) {
		service := &mockService{tree: "- [SSO Guide](/wiki/pages/sso)"}
		rec := serve(newTestRouter(service), http.MethodGet, "/tree?space=ENG&highlight=sso&highlight=okta", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "- [SSO Guide](/wiki/pages/sso)", rec.Body.String())
		assert.Equal(t, []string{"sso", "okta"}, service.highlight)
	})

	t.Run("Unknown space is 404", func(t *testing.T) {
		service := &mockService{treeErr: model.ErrNotFound}
		rec := serve(newTestRouter(service), http.MethodGet, "/tree?space=NOPE", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOperationalRoutes(t *testing.T) {
	router := newTestRouter(&mockService{})

	t.Run("Health check", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	})

	t.Run("Metrics exposes the registry", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "wikigraph_planner_reprompts_total")
	})

	t.Run("No metrics route without registry", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		bare := NewRouter(&mockService{}, nil, nil)
		assert.Equal(t, http.StatusNotFound, serve(bare, http.MethodGet, "/metrics", "").Code)
	})
}

func TestServe(t *testing.T) {
	t.Run("Stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		}()

		cancel()
		assert.NoError(t, <-done, "Expected graceful shutdown")
	})
}

func TestConversationRoutes(t *testing.T) {
	stored := func() *model.Conversation {
		conversation := model.NewConversation("c-1", time.Now())
		conversation.Append(model.Message{Role: model.RoleUser, Content: "How do I set it up?", Timestamp: time.Now()})
		conversation.Append(model.Message{Role: model.RoleAssistant, Content: "Which identity provider do you mean?", Timestamp: time.Now(), Answer: &model.Answer{
			Clarification: true,
			Steps:         []model.Step{{State: model.StatePlanning, Detail: "clarification"}},
		}})
		return conversation
	}

	t.Run("Clarify answers with the clarification", func(t *testing.T) {
		service := &mockService{answer: fallbackAnswer(), conversation: stored()}
		rec := serve(newTestRouter(service), http.MethodPost, "/clarify/c-1", `{"clarification":"Okta"}`)

		require.Equal(t, http.StatusOK, rec.Code, "Expected status OK, body: %s", rec.Body.String())
		assert.Equal(t, []string{"Okta"}, service.clarifications)
	})

	t.Run("Clarify rejects a blank clarification", func(t *testing.T) {
		service := &mockService{answer: fallbackAnswer(), conversation: stored()}
		router := newTestRouter(service)

		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/clarify/c-1", `{}`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/clarify/c-1", `{"clarification":"  "}`).Code)
		assert.Empty(t, service.clarifications)
	})

	t.Run("Clarify maps invalid input to 400", func(t *testing.T) {
		service := &mockService{err: fmt.Errorf("clarify: %w: conversation c-1 has no question", model.ErrInvalidInput)}
		rec := serve(newTestRouter(service), http.MethodPost, "/clarify/c-1", `{"clarification":"Okta"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Get returns the conversation with its thinking steps", func(t *testing.T) {
		service := &mockService{conversation: stored()}
		rec := serve(newTestRouter(service), http.MethodGet, "/conversation/c-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var conversation model.Conversation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversation))
		require.Len(t, conversation.Messages, 2)
		assert.Len(t, conversation.Steps(), 1, "Expected thinking steps to be returned")
	})

	t.Run("Unknown conversation is 404", func(t *testing.T) {
		router := newTestRouter(&mockService{conversation: stored()})
		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/conversation/c-2", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/conversation/c-2", "").Code)
	})

	t.Run("Delete marks the conversation", func(t *testing.T) {
		service := &mockService{conversation: stored()}
		rec := serve(newTestRouter(service), http.MethodDelete, "/conversation/c-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"c-1"}, service.deleted)
	})
}

func TestFeedbackRoute(t *testing.T) {
	t.Run("Stores feedback", func(t *testing.T) {
		service := &mockService{conversation: model.NewConversation("c-1", time.Now())}
		rec := serve(newTestRouter(service), http.MethodPost, "/feedback", `{"conversation_id":"c-1","helpful":false,"feedback_text":"Outdated page"}`)

		require.Equal(t, http.StatusOK, rec.Code, "Expected status OK, body: %s", rec.Body.String())
		require.Len(t, service.feedback, 1)
		assert.False(t, service.feedback[0].Helpful)
		assert.Equal(t, "Outdated page", service.feedback[0].Text)
		assert.Contains(t, rec.Body.String(), service.feedback[0].ID.String())
	})

	t.Run("Requires conversation id and helpful", func(t *testing.T) {
		service := &mockService{conversation: model.NewConversation("c-1", time.Now())}
		router := newTestRouter(service)

		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/feedback", `{"conversation_id":"c-1"}`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/feedback", `{"helpful":true}`).Code)
		assert.Empty(t, service.feedback)
	})

	t.Run("Unknown conversation is 404", func(t *testing.T) {
		rec := serve(newTestRouter(&mockService{}), http.MethodPost, "/feedback", `{"conversation_id":"c-9","helpful":true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
