package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHugot(t *testing.T) {
	// Note: NewHugot downloads the model on first use
	if testing.Short() {
		t.Skip("Skipping hugot test in short mode (requires model download)")
	}

	embedder, err := NewHugot("")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, embedder.Close())
	}()

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder.Embed(context.Background(), "How do I enable SSO?")
		require.NoError(t, err)
		assert.Equal(t, 384, len(embedding), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		first, err := embedder.Embed(context.Background(), "Deterministic embedding test")
		require.NoError(t, err)
		second, err := embedder.Embed(context.Background(), "Deterministic embedding test")
		require.NoError(t, err)

		for i := range first {
			assert.InDelta(t, first[i], second[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Cancelled context is not embedded", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := embedder.Embed(ctx, "q")
		assert.Error(t, err)
	})
}
