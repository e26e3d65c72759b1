package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoredChunk is a search hit with its graph-boosted score and the hop it was found in
type ScoredChunk struct {
	Hit        *SearchHit `json:"hit"`
	Combined   float64    `json:"combined_score"`   // raw relevance * (1 + graph boost)
	Normalized float64    `json:"normalized_score"` // min-max normalized combined score
	Hop        int        `json:"hop"`
}

// RetrievalResult accumulates scored chunks across hops,
// deduplicated by chunk id with the maximum score retained
type RetrievalResult struct {
	items []*ScoredChunk
	index map[uuid.UUID]int
}

// NewRetrievalResult creates an empty retrieval result
func NewRetrievalResult() *RetrievalResult {
	return &RetrievalResult{
		index: make(map[uuid.UUID]int),
	}
}

// Add appends a chunk or replaces an existing entry when the new score is higher.
// It returns true if the result changed.
func (r *RetrievalResult) Add(chunk *ScoredChunk) bool {
	if chunk == nil || chunk.Hit == nil {
		return false
	}
	if i, ok := r.index[chunk.Hit.ChunkID]; ok {
		if chunk.Combined > r.items[i].Combined {
			r.items[i] = chunk
			return true
		}
		return false
	}
	r.index[chunk.Hit.ChunkID] = len(r.items)
	r.items = append(r.items, chunk)
	return true
}

// Items returns the accumulated chunks in their current order
func (r *RetrievalResult) Items() []*ScoredChunk {
	return r.items
}

// Len returns the number of distinct chunks
func (r *RetrievalResult) Len() int {
	return len(r.items)
}

// Reorder replaces the order of the accumulated chunks.
// Items must be a permutation of the current items.
func (r *RetrievalResult) Reorder(items []*ScoredChunk) {
	r.items = items
	r.index = make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		r.index[item.Hit.ChunkID] = i
	}
}

// Top returns the first chunk or nil if the result is empty
func (r *RetrievalResult) Top() *ScoredChunk {
	if len(r.items) == 0 {
		return nil
	}
	return r.items[0]
}

// VerdictKind is one of the two confidence decisions
type VerdictKind string

const (
	VerdictDirectAnswer      VerdictKind = "direct_answer"
	VerdictHierarchyFallback VerdictKind = "hierarchy_fallback"
)

const (
	ReasonNoResults     = "no results"
	ReasonLowConfidence = "low confidence"
)

// Verdict is the output of the confidence decision engine
type Verdict struct {
	Kind          VerdictKind    `json:"kind"`
	Top           *ScoredChunk   `json:"top,omitempty"`
	Supporting    []*ScoredChunk `json:"supporting,omitempty"`
	AncestorChain []Breadcrumb   `json:"ancestor_chain,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Confidence    float64        `json:"confidence"`
}

// OrchestratorState is a state of the retrieval state machine
type OrchestratorState string

const (
	StatePlanning       OrchestratorState = "planning"
	StateRetrieving     OrchestratorState = "retrieving"
	StateExtractingSeed OrchestratorState = "extracting_seed"
	StateAggregating    OrchestratorState = "aggregating"
	StateDeciding       OrchestratorState = "deciding"
	StateDone           OrchestratorState = "done"
)

// Step is one entry of the thinking-process log
type Step struct {
	State    OrchestratorState `json:"state"`
	Hop      int               `json:"hop"`
	Detail   string            `json:"detail"`
	Duration time.Duration     `json:"duration"`
}

// Outcome is everything the orchestrator produced for one request
type Outcome struct {
	Plan      *QueryPlan       `json:"plan"`
	Result    *RetrievalResult `json:"-"`
	Verdict   *Verdict         `json:"verdict,omitempty"`
	Steps     []Step           `json:"steps"`
	CallCount int              `json:"call_count"`
	TimedOut  bool             `json:"timed_out"`
}

// Verification is the post-hoc check of a synthesized answer
type Verification struct {
	Risk      bool     `json:"risk"`
	RiskLevel string   `json:"risk_level,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Issues    []string `json:"issues_found,omitempty"`
}

// Answer is the user-facing response to a question
type Answer struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Query          string        `json:"query"`
	Answer         string        `json:"answer"`
	Kind           VerdictKind   `json:"kind,omitempty"`
	Confidence     float64       `json:"confidence"`
	Sources        []string      `json:"sources,omitempty"`
	Breadcrumbs    []Breadcrumb  `json:"breadcrumbs,omitempty"`
	Incomplete     bool          `json:"incomplete"`
	Clarification  bool          `json:"clarification"`
	Verification   *Verification `json:"verification,omitempty"`
	Cached         bool          `json:"cached"`
	Steps          []Step        `json:"steps,omitempty"`
}
