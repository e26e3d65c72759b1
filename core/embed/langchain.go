package embed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const embeddingCapability = "embedding"

// LangChain embeds queries through an OpenAI compatible embedding API
type LangChain struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewLangChain creates an embedder for an OpenAI compatible API.
// Use "none" as token for local services without authentication.
func NewLangChain(baseURL string, token string, embeddingModel string, logger *slog.Logger) (*LangChain, error) {
	options := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(embeddingModel),
	}
	if baseURL != "" {
		options = append(options, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(options...)
	if err != nil {
		return nil, helper.NewError("embedding client", err)
	}

	return NewLangChainWithClient(client, logger)
}

// NewLangChainWithClient creates an embedder around any langchaingo embedder client
func NewLangChainWithClient(client embeddings.EmbedderClient, logger *slog.Logger) (*LangChain, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, helper.NewError("embedder", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LangChain{
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Embed returns the embedding of text
func (l *LangChain) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		l.logger.Error("failed to generate embedding", slog.String("error", err.Error()))
		return nil, model.NewCapabilityUnavailable(embeddingCapability, err)
	}
	if len(vector) == 0 {
		return nil, errors.New("embedder returned empty result")
	}
	return vector, nil
}
