package model

import "fmt"

// Classification is the tagged variant a query is classified into
type Classification string

const (
	ClassificationAtomic             Classification = "atomic"
	ClassificationNeedsDecomposition Classification = "needs_decomposition"
	ClassificationClarification      Classification = "clarification"
)

// ParseClassification parses a classification name
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(s); c {
	case ClassificationAtomic, ClassificationNeedsDecomposition, ClassificationClarification:
		return c, nil
	default:
		return "", fmt.Errorf("unknown classification: %q", s)
	}
}

// QueryPlan is the per-request plan produced by the query planner
type QueryPlan struct {
	OriginalQuery         string         `json:"original_query"`
	Classification        Classification `json:"classification"`
	SubQuestions          []string       `json:"sub_questions"`
	ClarificationQuestion string         `json:"clarification_question,omitempty"`
	KeyConcepts           []string       `json:"key_concepts,omitempty"`
	Reasoning             string         `json:"reasoning,omitempty"`
	HopBudget             int            `json:"hop_budget"`
	Truncated             bool           `json:"truncated"`
}

// NewAtomicPlan returns a plan that searches for the query as is
func NewAtomicPlan(query string, hopBudget int) *QueryPlan {
	return &QueryPlan{
		OriginalQuery:  query,
		Classification: ClassificationAtomic,
		SubQuestions:   []string{query},
		HopBudget:      hopBudget,
	}
}

// HopKind tells the orchestrator how to run the next hop
type HopKind string

const (
	HopUnfiltered HopKind = "unfiltered"
	HopFiltered   HopKind = "filtered"
	HopTruncate   HopKind = "truncate"
)

// HopPlan is the path planner's decision for one hop
type HopPlan struct {
	Kind     HopKind `json:"kind"`
	HopIndex int     `json:"hop_index"`
	Filter   *Filter `json:"filter,omitempty"`
}
