package confidence

import (
	"context"
	"log/slog"
	"math"

	"github.com/siherrmann/wikigraph/model"
)

// AncestorSource returns the parent of a node as a breadcrumb.
// ok is false if the node has no known parent.
type AncestorSource interface {
	SelectAncestor(ctx context.Context, id string) (parent model.Breadcrumb, ok bool, err error)
}

// Engine decides between a direct answer and a hierarchy fallback
type Engine struct {
	ancestors    AncestorSource
	threshold    float64
	scoreScale   float64
	maxLevels    int
	maxSupported int
	logger       *slog.Logger
}

// NewEngine creates a new confidence decision engine. The ancestor source
// may be nil, in which case fallback chains only contain the best node.
func NewEngine(ancestors AncestorSource, config model.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	scale := config.ScoreScale
	if scale <= 0 {
		scale = 1
	}

	return &Engine{
		ancestors:    ancestors,
		threshold:    config.ConfidenceThreshold,
		scoreScale:   scale,
		maxLevels:    config.MaxAncestorLevels,
		maxSupported: config.TopK,
		logger:       logger,
	}
}

// Decide returns the verdict for a result sorted by combined score.
// It never fails, an empty result yields a fallback with reason "no results".
func (e *Engine) Decide(ctx context.Context, result *model.RetrievalResult) *model.Verdict {
	if result == nil || result.Len() == 0 {
		return &model.Verdict{
			Kind:   model.VerdictHierarchyFallback,
			Reason: model.ReasonNoResults,
		}
	}

	e.Normalize(result.Items())
	top := result.Top()

	if top.Normalized >= e.threshold {
		return &model.Verdict{
			Kind:       model.VerdictDirectAnswer,
			Top:        top,
			Supporting: e.supporting(result.Items()),
			Confidence: top.Normalized,
		}
	}

	return &model.Verdict{
		Kind:          model.VerdictHierarchyFallback,
		Top:           top,
		AncestorChain: e.Chain(ctx, top.Hit),
		Reason:        model.ReasonLowConfidence,
		Confidence:    top.Normalized,
	}
}

// Normalize min-max normalizes the combined scores of the candidate pool.
// The bounds always include [0, score scale], so a pool of weak scores
// stays weak after normalization.
func (e *Engine) Normalize(items []*model.ScoredChunk) {
	lo, hi := 0.0, e.scoreScale
	for _, item := range items {
		lo = math.Min(lo, item.Combined)
		hi = math.Max(hi, item.Combined)
	}

	span := hi - lo
	for _, item := range items {
		if span <= 0 {
			item.Normalized = 0
			continue
		}
		item.Normalized = (item.Combined - lo) / span
	}
}

func (e *Engine) supporting(items []*model.ScoredChunk) []*model.ScoredChunk {
	if len(items) < 2 {
		return nil
	}
	end := len(items)
	if e.maxSupported > 0 && end > e.maxSupported {
		end = e.maxSupported
	}
	return items[1:end]
}

// Chain returns the best node followed by at most maxLevels ancestors.
// Lookup failures shorten the chain.
func (e *Engine) Chain(ctx context.Context, hit *model.SearchHit) []model.Breadcrumb {
	chain := []model.Breadcrumb{{NodeID: hit.NodeID, Title: hit.Title, Depth: hit.HierarchyDepth}}
	if e.ancestors == nil {
		return chain
	}

	visited := map[string]bool{hit.NodeID: true}
	current := hit.NodeID
	for level := 0; level < e.maxLevels; level++ {
		parent, ok, err := e.ancestors.SelectAncestor(ctx, current)
		if err != nil {
			e.logger.Warn("Ancestor lookup failed", slog.String("node_id", current), slog.String("error", err.Error()))
			break
		}
		if !ok || visited[parent.NodeID] {
			break
		}
		visited[parent.NodeID] = true
		chain = append(chain, parent)
		current = parent.NodeID
	}

	return chain
}
