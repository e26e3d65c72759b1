package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

// Classifier is the text understanding capability that classifies a query.
// feedback is empty on the first attempt and carries the validation error
// of the previous answer on a reprompt.
type Classifier interface {
	Classify(ctx context.Context, query string, feedback string) (json.RawMessage, error)
}

// classification is the validated classifier output
type classification struct {
	Classification        string   `json:"classification"`
	SubQuestions          []string `json:"sub_questions"`
	ClarificationQuestion *string  `json:"clarification_question"`
	KeyConcepts           []string `json:"key_concepts"`
	Confidence            float64  `json:"confidence"`
	Reasoning             string   `json:"reasoning"`
}

// QueryPlanner classifies queries and decomposes them into sub-questions
type QueryPlanner struct {
	classifier   Classifier
	schema       *jsonschema.Resolved
	maxReprompts int
	logger       *slog.Logger
	metrics      *helper.Metrics
}

// NewQueryPlanner creates a query planner. A nil classifier plans every
// query as atomic.
func NewQueryPlanner(classifier Classifier, config model.Config, logger *slog.Logger, metrics *helper.Metrics) (*QueryPlanner, error) {
	schema, err := classificationSchema().Resolve(nil)
	if err != nil {
		return nil, helper.NewError("resolve classification schema", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryPlanner{
		classifier:   classifier,
		schema:       schema,
		maxReprompts: config.MaxReprompts,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// Plan classifies the query and returns its plan. It never fails: if the
// classifier is unavailable or keeps answering malformed output the query
// is planned as atomic.
func (p *QueryPlanner) Plan(ctx context.Context, query string, hopBudget int) *model.QueryPlan {
	if p.classifier == nil {
		return model.NewAtomicPlan(query, hopBudget)
	}

	feedback := ""
	for attempt := 0; attempt <= p.maxReprompts; attempt++ {
		if attempt > 0 {
			p.metrics.Reprompt()
		}

		raw, err := p.classifier.Classify(ctx, query, feedback)
		if err != nil {
			p.logger.Warn("Classifier failed, planning query as atomic", slog.String("error", err.Error()))
			return model.NewAtomicPlan(query, hopBudget)
		}

		output, err := p.parse(raw)
		if err != nil {
			p.logger.Warn("Malformed classification", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
			feedback = err.Error()
			continue
		}

		return newPlan(query, hopBudget, output)
	}

	p.logger.Warn("Classifier kept returning malformed output, planning query as atomic", slog.Int("attempts", p.maxReprompts+1))
	return model.NewAtomicPlan(query, hopBudget)
}

// parse validates the raw classifier output against the schema and the
// semantic rules of each classification
func (p *QueryPlanner) parse(raw json.RawMessage) (*classification, error) {
	content := helper.StripCodeFence(string(raw))

	var instance map[string]any
	if err := json.Unmarshal([]byte(content), &instance); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := p.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}

	output := &classification{}
	if err := json.Unmarshal([]byte(content), output); err != nil {
		return nil, fmt.Errorf("invalid classification: %w", err)
	}

	switch model.Classification(output.Classification) {
	case model.ClassificationNeedsDecomposition:
		output.SubQuestions = normalizeQuestions(output.SubQuestions)
		if len(output.SubQuestions) < 2 {
			return nil, errors.New("needs_decomposition requires at least 2 distinct sub_questions")
		}
	case model.ClassificationClarification:
		if output.ClarificationQuestion == nil || strings.TrimSpace(*output.ClarificationQuestion) == "" {
			return nil, errors.New("clarification requires a clarification_question")
		}
	}

	return output, nil
}

func newPlan(query string, hopBudget int, output *classification) *model.QueryPlan {
	plan := &model.QueryPlan{
		OriginalQuery:  query,
		Classification: model.Classification(output.Classification),
		KeyConcepts:    output.KeyConcepts,
		Reasoning:      output.Reasoning,
		HopBudget:      hopBudget,
	}

	switch plan.Classification {
	case model.ClassificationAtomic:
		plan.SubQuestions = []string{query}
	case model.ClassificationNeedsDecomposition:
		plan.SubQuestions = output.SubQuestions
		if len(plan.SubQuestions) > hopBudget {
			plan.SubQuestions = plan.SubQuestions[:hopBudget]
			plan.Truncated = true
		}
	case model.ClassificationClarification:
		plan.ClarificationQuestion = strings.TrimSpace(*output.ClarificationQuestion)
	}

	return plan
}

// normalizeQuestions trims sub-questions and drops empty and duplicate ones,
// comparing case-insensitively and keeping the first occurrence
func normalizeQuestions(questions []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, question := range questions {
		question = strings.TrimSpace(question)
		key := strings.ToLower(question)
		if question == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, question)
	}
	return out
}
