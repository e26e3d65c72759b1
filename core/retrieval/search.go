package retrieval

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"golang.org/x/sync/errgroup"
)

// DocumentIndex is the ranked search capability over indexed chunks
type DocumentIndex interface {
	Search(ctx context.Context, request model.SearchRequest) ([]*model.SearchHit, error)
}

// Embedder turns query text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// hybridSearch runs the vector and the keyword search of one hop concurrently
// and merges them by chunk id keeping the higher score. Without an embedder
// only the keyword search runs. A hop fails only if both searches fail or the
// index is unavailable.
func (o *Orchestrator) hybridSearch(ctx context.Context, text string, filter *model.Filter) ([]*model.SearchHit, error) {
	keywordRequest := model.SearchRequest{Text: text, Filter: filter, TopK: o.config.TopK}
	if o.embedder == nil {
		return o.index.Search(ctx, keywordRequest)
	}

	vector, err := o.embedder.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		o.logger.Warn("Embedding failed, using keyword search only", slog.String("error", err.Error()))
		return o.index.Search(ctx, keywordRequest)
	}

	// Both halves always run to completion, one failing half must not
	// discard the hits of the other
	var vectorHits, keywordHits []*model.SearchHit
	var vectorErr, keywordErr error
	var group errgroup.Group
	group.Go(func() error {
		vectorHits, vectorErr = o.index.Search(ctx, model.SearchRequest{Text: text, Vector: vector, Filter: filter, TopK: o.config.TopK})
		return nil
	})
	group.Go(func() error {
		keywordHits, keywordErr = o.index.Search(ctx, keywordRequest)
		return nil
	})
	_ = group.Wait()

	for _, err := range []error{vectorErr, keywordErr} {
		if errors.Is(err, model.ErrCapabilityUnavailable) {
			return nil, err
		}
	}
	switch {
	case vectorErr != nil && keywordErr != nil:
		return nil, errors.Join(helper.NewError("vector search", vectorErr), helper.NewError("keyword search", keywordErr))
	case vectorErr != nil:
		o.logger.Warn("Vector search failed, using keyword hits only", slog.String("error", vectorErr.Error()))
	case keywordErr != nil:
		o.logger.Warn("Keyword search failed, using vector hits only", slog.String("error", keywordErr.Error()))
	}

	return mergeHits(vectorHits, keywordHits), nil
}

// mergeHits merges hit lists by chunk id, keeping the first occurrence order
// and the maximum score
func mergeHits(lists ...[]*model.SearchHit) []*model.SearchHit {
	var merged []*model.SearchHit
	index := map[string]int{}
	for _, hits := range lists {
		for _, hit := range hits {
			if hit == nil {
				continue
			}
			key := hit.ChunkID.String()
			if i, ok := index[key]; ok {
				if hit.Score > merged[i].Score {
					merged[i] = hit
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, hit)
		}
	}
	return merged
}

// searchWithRetry runs one logical retrieval call with exponential backoff.
// An unavailable index is not retried.
func (o *Orchestrator) searchWithRetry(ctx context.Context, text string, filter *model.Filter) ([]*model.SearchHit, error) {
	var hits []*model.SearchHit
	err := helper.RetryWithBackoff(ctx, func(ctx context.Context) error {
		result, err := o.hybridSearch(ctx, text, filter)
		if err != nil {
			if errors.Is(err, model.ErrCapabilityUnavailable) {
				return &helper.Permanent{Err: err}
			}
			return err
		}
		hits = result
		return nil
	}, o.attempts(), o.config.RetryBaseDelay)
	return hits, err
}

// attempts is the first call plus at most two retries
func (o *Orchestrator) attempts() int {
	retries := o.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if retries > 2 {
		retries = 2
	}
	return 1 + retries
}
