package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/wikigraph/helper"
)

// DefaultHugotModel is a sentence transformer producing 384-dimensional embeddings
const DefaultHugotModel = "sentence-transformers/all-MiniLM-L6-v2"

// Hugot embeds queries with a local sentence transformer model
type Hugot struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// NewHugot downloads the model if needed and starts a pure Go hugot session
func NewHugot(modelName string) (*Hugot, error) {
	if modelName == "" {
		modelName = DefaultHugotModel
	}
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "query-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &Hugot{
		session:  session,
		pipeline: pipeline,
	}, nil
}

// Embed returns the embedding of text
func (h *Hugot) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}

	return result.Embeddings[0], nil
}

// Close destroys the hugot session
func (h *Hugot) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Destroy()
}
