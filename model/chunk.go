package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents an embeddable piece of a document node
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	NodeID     string    `json:"node_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter constrains search candidates to nodes reachable from AnchorID
// in exactly one hop over one of RelationTypes
type Filter struct {
	AnchorID      string         `json:"anchor_id"`
	RelationTypes []RelationType `json:"relation_types"`
}

// SearchRequest is a single call against the document index
type SearchRequest struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
	Filter *Filter   `json:"filter,omitempty"`
	TopK   int       `json:"top_k"`
}

// IsFilterOnly reports whether the request is a pure graph-filtered fetch
func (r SearchRequest) IsFilterOnly() bool {
	return r.Vector == nil && (r.Text == "" || r.Text == "*") && r.Filter != nil
}

// SearchHit is one ranked candidate returned by the document index,
// with the node's graph metrics denormalized onto it
type SearchHit struct {
	ChunkID         uuid.UUID `json:"chunk_id"`
	NodeID          string    `json:"node_id"`
	ParentID        *string   `json:"parent_id,omitempty"`
	Title           string    `json:"title"`
	Text            string    `json:"text"`
	Score           float64   `json:"score"`
	HierarchyDepth  int       `json:"hierarchy_depth"`
	CentralityScore float64   `json:"centrality_score"`
	ChildCount      int       `json:"child_count"`
	RelatedCount    int       `json:"related_count"`
}
