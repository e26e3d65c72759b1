package graph

import (
	"context"
	"fmt"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

// GraphDB defines the interface for graph operations
type GraphDB interface {
	SelectNeighborIDs(ctx context.Context, sourceID string, relationType model.RelationType) ([]string, error)
}

// TraversalResult contains a node and its distance from the source
type TraversalResult struct {
	NodeID   string
	Distance int
	Path     []string // Path from source to this node
}

// Client is the graph traversal client used by the metrics pass
type Client struct {
	db GraphDB
}

// NewClient creates a traversal client on top of a graph store
func NewClient(db GraphDB) *Client {
	return &Client{db: db}
}

// Neighbors returns the ids of all nodes reachable from nodeID over
// relationType within maxDepth hops, in breadth-first order without
// the source itself. A maxDepth below 1 is treated as 1.
func (c *Client) Neighbors(ctx context.Context, nodeID string, relationType model.RelationType, maxDepth int) ([]string, error) {
	if !relationType.Valid() {
		return nil, helper.NewError("neighbors", fmt.Errorf("unknown relation type: %s", relationType))
	}
	if maxDepth < 1 {
		maxDepth = 1
	}

	results, err := BFS(ctx, c.db, nodeID, maxDepth, relationType)
	if err != nil {
		return nil, helper.NewError("neighbors", err)
	}

	// Skip the source node itself (first result)
	neighbors := make([]string, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].NodeID)
	}

	return neighbors, nil
}

// BFS performs breadth-first search from a source node over one relation type
func BFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, relationType model.RelationType) ([]*TraversalResult, error) {
	visited := map[string]bool{sourceID: true}
	queue := []TraversalResult{{
		NodeID:   sourceID,
		Distance: 0,
		Path:     []string{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		targetIDs, err := db.SelectNeighborIDs(ctx, current.NodeID, relationType)
		if err != nil {
			return nil, err
		}

		for _, targetID := range targetIDs {
			if visited[targetID] {
				continue
			}
			visited[targetID] = true

			newPath := make([]string, len(current.Path), len(current.Path)+1)
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				NodeID:   targetID,
				Distance: current.Distance + 1,
				Path:     newPath,
			})
		}
	}

	return results, nil
}
