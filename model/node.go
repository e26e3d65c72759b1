package model

import (
	"time"
)

// DocumentNode represents one indexed page of the wiki corpus (node in the graph)
type DocumentNode struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id,omitempty"`
	SpaceID  string  `json:"space_id"`
	Title    string  `json:"title"`
	Text     string  `json:"text,omitempty"`
	// Derived from relations, not stored as columns
	ChildIDs  []string `json:"child_ids,omitempty"`
	LinkedIDs []string `json:"linked_ids,omitempty"`
	// Graph metrics written by the metrics engine
	HierarchyDepth  int     `json:"hierarchy_depth"`
	ChildCount      int     `json:"child_count"`
	SiblingCount    int     `json:"sibling_count"`
	RelatedCount    int     `json:"related_count"`
	CentralityScore float64 `json:"centrality_score"`
	// Version is bumped on every write and guards metrics write-back
	Version   int64     `json:"version"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the node has no parent reference
func (n *DocumentNode) IsRoot() bool {
	return n.ParentID == nil || *n.ParentID == ""
}

// Parent returns the parent id or an empty string for roots
func (n *DocumentNode) Parent() string {
	if n.IsRoot() {
		return ""
	}
	return *n.ParentID
}

// NodeMetrics is the set of topology annotations computed for one node
type NodeMetrics struct {
	HierarchyDepth  int     `json:"hierarchy_depth"`
	ChildCount      int     `json:"child_count"`
	SiblingCount    int     `json:"sibling_count"`
	RelatedCount    int     `json:"related_count"`
	CentralityScore float64 `json:"centrality_score"`
}

// Metrics returns the metrics currently stored on the node
func (n *DocumentNode) Metrics() NodeMetrics {
	return NodeMetrics{
		HierarchyDepth:  n.HierarchyDepth,
		ChildCount:      n.ChildCount,
		SiblingCount:    n.SiblingCount,
		RelatedCount:    n.RelatedCount,
		CentralityScore: n.CentralityScore,
	}
}

// Breadcrumb is one entry of an ancestor chain
type Breadcrumb struct {
	NodeID string `json:"node_id"`
	Title  string `json:"title"`
	Depth  int    `json:"depth"`
}

// StringPtr returns a pointer to s, or nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
