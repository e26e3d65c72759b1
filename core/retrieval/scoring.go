package retrieval

import (
	"math"

	"github.com/siherrmann/wikigraph/model"
)

const (
	discreteBoostCap      = 0.2
	discreteAncestorBoost = 0.05
	discreteChildBoost    = 0.03
	discreteRelatedBoost  = 0.02
)

// GraphBoost returns the graph boost of a hit for the configured boost mode
func GraphBoost(hit *model.SearchHit, config model.Config) float64 {
	switch config.BoostMode {
	case model.BoostDiscrete:
		return discreteBoost(hit)
	default:
		return continuousBoost(hit, config.CentralityWeight, config.DepthWeight)
	}
}

// continuousBoost favors central pages and, through 1/(1+depth), broad pages
func continuousBoost(hit *model.SearchHit, centralityWeight float64, depthWeight float64) float64 {
	depth := math.Max(0, float64(hit.HierarchyDepth))
	return centralityWeight*hit.CentralityScore + depthWeight/(1+depth)
}

// discreteBoost adds fixed increments per ancestor, child and related page, capped at 20%
func discreteBoost(hit *model.SearchHit) float64 {
	boost := discreteAncestorBoost*float64(clampCount(hit.HierarchyDepth, 3)) +
		discreteChildBoost*float64(clampCount(hit.ChildCount, 5)) +
		discreteRelatedBoost*float64(clampCount(hit.RelatedCount, 5))
	return math.Min(discreteBoostCap, boost)
}

// CombinedScore is the raw relevance adjusted by the graph boost
func CombinedScore(hit *model.SearchHit, config model.Config) float64 {
	return hit.Score * (1 + GraphBoost(hit, config))
}

// ScoreHits scores the hits of one hop
func ScoreHits(hits []*model.SearchHit, hop int, config model.Config) []*model.ScoredChunk {
	scored := make([]*model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		scored = append(scored, &model.ScoredChunk{
			Hit:      hit,
			Combined: CombinedScore(hit, config),
			Hop:      hop,
		})
	}
	return scored
}

func clampCount(v int, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
