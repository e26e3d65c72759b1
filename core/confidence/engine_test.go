package confidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAncestors is a parent map with optional failing nodes
type mockAncestors struct {
	parents map[string]string
	failing map[string]bool
	calls   int
}

func (m *mockAncestors) SelectAncestor(ctx context.Context, id string) (model.Breadcrumb, bool, error) {
	m.calls++
	if m.failing[id] {
		return model.Breadcrumb{}, false, errors.New("connection reset")
	}
	parent, ok := m.parents[id]
	if !ok {
		return model.Breadcrumb{}, false, nil
	}
	return model.Breadcrumb{NodeID: parent, Title: "Title " + parent}, true, nil
}

func scored(nodeID string, combined float64) *model.ScoredChunk {
	return &model.ScoredChunk{
		Hit:      &model.SearchHit{ChunkID: uuid.New(), NodeID: nodeID, Title: "Title " + nodeID, Score: combined},
		Combined: combined,
	}
}

func resultOf(chunks ...*model.ScoredChunk) *model.RetrievalResult {
	result := model.NewRetrievalResult()
	for _, chunk := range chunks {
		result.Add(chunk)
	}
	return result
}

func newTestEngine(ancestors AncestorSource) *Engine {
	return NewEngine(ancestors, model.DefaultConfig(), helper.NewLogger(io.Discard, slog.LevelDebug))
}

func TestDecide(t *testing.T) {
	t.Run("Empty result falls back with reason no results", func(t *testing.T) {
		engine := newTestEngine(&mockAncestors{})

		verdict := engine.Decide(context.Background(), model.NewRetrievalResult())
		require.NotNil(t, verdict)
		assert.Equal(t, model.VerdictHierarchyFallback, verdict.Kind)
		assert.Equal(t, model.ReasonNoResults, verdict.Reason)
		assert.Nil(t, verdict.Top)
		assert.Empty(t, verdict.AncestorChain)

		verdict = engine.Decide(context.Background(), nil)
		assert.Equal(t, model.VerdictHierarchyFallback, verdict.Kind, "Expected nil result to be treated as empty")
	})

	t.Run("Top score at threshold is a direct answer", func(t *testing.T) {
		engine := newTestEngine(nil)
		result := resultOf(scored("sso", 0.7), scored("okta", 0.3))

		verdict := engine.Decide(context.Background(), result)
		assert.Equal(t, model.VerdictDirectAnswer, verdict.Kind)
		assert.Equal(t, "sso", verdict.Top.Hit.NodeID)
		assert.InDelta(t, 0.7, verdict.Confidence, 1e-9)
		require.Len(t, verdict.Supporting, 1)
		assert.Equal(t, "okta", verdict.Supporting[0].Hit.NodeID)
	})

	t.Run("Low score falls back to the ancestor chain of the best node", func(t *testing.T) {
		ancestors := &mockAncestors{parents: map[string]string{"a": "b", "b": "c"}}
		engine := newTestEngine(ancestors)

		verdict := engine.Decide(context.Background(), resultOf(scored("a", 0.4)))
		assert.Equal(t, model.VerdictHierarchyFallback, verdict.Kind)
		assert.Equal(t, model.ReasonLowConfidence, verdict.Reason)
		require.Len(t, verdict.AncestorChain, 3)
		assert.Equal(t, "a", verdict.AncestorChain[0].NodeID, "Expected best node first")
		assert.Equal(t, "b", verdict.AncestorChain[1].NodeID)
		assert.Equal(t, "c", verdict.AncestorChain[2].NodeID)
	})

	t.Run("Ancestor walk is bounded", func(t *testing.T) {
		parents := map[string]string{}
		for i := 0; i < 20; i++ {
			parents[fmt.Sprintf("n%d", i)] = fmt.Sprintf("n%d", i+1)
		}
		ancestors := &mockAncestors{parents: parents}
		engine := newTestEngine(ancestors)

		verdict := engine.Decide(context.Background(), resultOf(scored("n0", 0.1)))
		assert.Len(t, verdict.AncestorChain, 1+model.DefaultConfig().MaxAncestorLevels)
		assert.Equal(t, 5, ancestors.calls)
	})

	t.Run("Ancestor cycle stops the walk", func(t *testing.T) {
		ancestors := &mockAncestors{parents: map[string]string{"a": "b", "b": "a"}}
		engine := newTestEngine(ancestors)

		verdict := engine.Decide(context.Background(), resultOf(scored("a", 0.1)))
		assert.Len(t, verdict.AncestorChain, 2)
	})

	t.Run("Lookup failure shortens the chain", func(t *testing.T) {
		ancestors := &mockAncestors{parents: map[string]string{"a": "b", "b": "c"}, failing: map[string]bool{"b": true}}
		engine := newTestEngine(ancestors)

		verdict := engine.Decide(context.Background(), resultOf(scored("a", 0.1)))
		assert.Equal(t, model.VerdictHierarchyFallback, verdict.Kind)
		assert.Len(t, verdict.AncestorChain, 2)
	})
}

func TestNormalize(t *testing.T) {
	engine := newTestEngine(nil)

	t.Run("Scores within scale keep their value", func(t *testing.T) {
		items := []*model.ScoredChunk{scored("a", 0.9), scored("b", 0.2)}
		engine.Normalize(items)
		assert.InDelta(t, 0.9, items[0].Normalized, 1e-9)
		assert.InDelta(t, 0.2, items[1].Normalized, 1e-9)
	})

	t.Run("Boosted scores above scale are mapped into the unit interval", func(t *testing.T) {
		items := []*model.ScoredChunk{scored("a", 1.2), scored("b", 0.6)}
		engine.Normalize(items)
		assert.InDelta(t, 1.0, items[0].Normalized, 1e-9)
		assert.InDelta(t, 0.5, items[1].Normalized, 1e-9)
	})

	t.Run("A single weak score stays weak", func(t *testing.T) {
		items := []*model.ScoredChunk{scored("a", 0.3)}
		engine.Normalize(items)
		assert.InDelta(t, 0.3, items[0].Normalized, 1e-9)
	})
}
