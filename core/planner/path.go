package planner

import (
	"github.com/siherrmann/wikigraph/model"
)

// DefaultEdgeTypes are followed when no edge types are configured
var DefaultEdgeTypes = []model.RelationType{model.RelationParentOf, model.RelationLinksTo}

// PathPlanner decides the graph filter of each hop
type PathPlanner struct{}

// Plan returns the plan for hop hopIndex given the seed node of the previous hop.
// Hops at or beyond the budget are truncated. The first hop and hops without
// a seed are unfiltered. Every other hop is restricted to nodes one relation
// of edgeTypes away from the seed.
func (PathPlanner) Plan(prevNodeID string, hopIndex int, hopBudget int, edgeTypes []model.RelationType) model.HopPlan {
	if hopIndex >= hopBudget {
		return model.HopPlan{Kind: model.HopTruncate, HopIndex: hopIndex}
	}
	if hopIndex == 0 || prevNodeID == "" {
		return model.HopPlan{Kind: model.HopUnfiltered, HopIndex: hopIndex}
	}

	if len(edgeTypes) == 0 {
		edgeTypes = DefaultEdgeTypes
	}

	return model.HopPlan{
		Kind:     model.HopFiltered,
		HopIndex: hopIndex,
		Filter: &model.Filter{
			AnchorID:      prevNodeID,
			RelationTypes: append([]model.RelationType(nil), edgeTypes...),
		},
	}
}

// SelectSeed returns the node of the chunk with the highest combined score.
// Ties go to the lowest hierarchy depth, then to the lowest node id.
func SelectSeed(chunks []*model.ScoredChunk) (string, bool) {
	var best *model.ScoredChunk
	for _, chunk := range chunks {
		if chunk == nil || chunk.Hit == nil {
			continue
		}
		if best == nil || betterSeed(chunk, best) {
			best = chunk
		}
	}
	if best == nil {
		return "", false
	}
	return best.Hit.NodeID, true
}

func betterSeed(a *model.ScoredChunk, b *model.ScoredChunk) bool {
	if a.Combined != b.Combined {
		return a.Combined > b.Combined
	}
	if a.Hit.HierarchyDepth != b.Hit.HierarchyDepth {
		return a.Hit.HierarchyDepth < b.Hit.HierarchyDepth
	}
	return a.Hit.NodeID < b.Hit.NodeID
}
