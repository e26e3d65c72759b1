package wikigraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

const (
	answerKeyPrefix = "answer:"
	queryNodePrefix = "query:"

	noInformationAnswer = "No information found."
	fallbackAnswer      = "I couldn't find a confident answer. You may find it under: "
	relatedPagesNote    = "Related pages: "
	incompleteNote      = "answer may be incomplete"
)

// Ask answers a question from the wiki. It returns a direct answer when the
// retrieval is confident, otherwise the hierarchy location where the answer
// may be found, or a clarification question for ambiguous queries.
func (w *WikiGraph) Ask(ctx context.Context, query string) (*model.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, helper.NewError("ask", fmt.Errorf("query is empty"))
	}

	key := answerKeyPrefix + helper.QueryHash(query)
	if answer, ok := w.cachedAnswer(ctx, key); ok {
		return answer, nil
	}

	outcome, err := w.runner.Run(ctx, query)
	if err != nil {
		return nil, helper.NewError("ask", err)
	}

	answer := &model.Answer{Query: query, Steps: outcome.Steps}
	plan := outcome.Plan
	if plan.Classification == model.ClassificationClarification {
		answer.Clarification = true
		answer.Answer = plan.ClarificationQuestion
		return answer, nil
	}

	verdict := outcome.Verdict
	answer.Kind = verdict.Kind
	answer.Confidence = verdict.Confidence
	if verdict.Kind == model.VerdictDirectAnswer {
		w.directAnswer(ctx, query, verdict, answer)
	} else {
		w.fallbackAnswer(verdict, answer)
	}

	if plan.Truncated || outcome.TimedOut {
		answer.Incomplete = true
		answer.Answer = fmt.Sprintf("%s\n\n(%s)", answer.Answer, incompleteNote)
	}

	w.recordFeedback(ctx, plan)

	if verdict.Kind == model.VerdictDirectAnswer && !answer.Incomplete {
		w.storeAnswer(ctx, key, answer)
	}

	return answer, nil
}

func (w *WikiGraph) directAnswer(ctx context.Context, query string, verdict *model.Verdict, answer *model.Answer) {
	chunks := append([]*model.ScoredChunk{verdict.Top}, verdict.Supporting...)
	answer.Sources = sources(chunks)

	text := verdict.Top.Hit.Text
	if w.synthesizer != nil {
		synthesized, err := w.synthesizer.Synthesize(ctx, query, chunks)
		if err != nil {
			w.log.Warn("Synthesis failed, returning best chunk", slog.String("error", err.Error()))
		} else if strings.TrimSpace(synthesized) != "" {
			text = synthesized
		}
	}
	answer.Answer = text

	if w.verifier == nil {
		return
	}
	verification, err := w.verifier.Verify(ctx, text, chunks)
	if err != nil {
		w.log.Warn("Verification failed", slog.String("error", err.Error()))
		return
	}
	answer.Verification = verification
	if !verification.Risk {
		return
	}

	chain := verdict.AncestorChain
	if len(chain) == 0 && w.chainer != nil {
		chain = w.chainer.Chain(ctx, verdict.Top.Hit)
	}
	answer.Breadcrumbs = chain
	if len(chain) > 0 {
		answer.Answer = fmt.Sprintf("%s\n\n%s%s", text, relatedPagesNote, FormatBreadcrumbs(chain))
	}
}

func (w *WikiGraph) fallbackAnswer(verdict *model.Verdict, answer *model.Answer) {
	if len(verdict.AncestorChain) == 0 {
		answer.Answer = noInformationAnswer
		return
	}
	answer.Breadcrumbs = verdict.AncestorChain
	answer.Sources = []string{verdict.AncestorChain[0].NodeID}
	answer.Answer = fallbackAnswer + FormatBreadcrumbs(verdict.AncestorChain)
}

// FormatBreadcrumbs renders a chain that starts at a node and walks up to
// its ancestors as "root > ... > node"
func FormatBreadcrumbs(chain []model.Breadcrumb) string {
	titles := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		titles = append(titles, chain[i].Title)
	}
	return strings.Join(titles, " > ")
}

// recordFeedback links a decomposed question to its sub-questions so that
// recurring decompositions become visible in the graph
func (w *WikiGraph) recordFeedback(ctx context.Context, plan *model.QueryPlan) {
	if !w.Config.FeedbackEnabled || w.feedback == nil || plan.Classification != model.ClassificationNeedsDecomposition {
		return
	}

	source := queryNodePrefix + helper.QueryHash(plan.OriginalQuery)
	for _, question := range plan.SubQuestions {
		relation := &model.Relation{
			SourceID: source,
			TargetID: queryNodePrefix + helper.QueryHash(question),
			Type:     model.RelationDependsOn,
		}
		if err := w.feedback.InsertRelation(ctx, relation); err != nil {
			w.log.Warn("Error recording decomposition feedback", slog.String("target", relation.TargetID), slog.String("error", err.Error()))
		}
	}
}

func (w *WikiGraph) cachedAnswer(ctx context.Context, key string) (*model.Answer, bool) {
	if w.cache == nil {
		return nil, false
	}

	value, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.log.Warn("Response cache lookup failed", slog.String("error", err.Error()))
	}
	w.Prometheus.CacheLookup("answer", ok && err == nil)
	if err != nil || !ok {
		return nil, false
	}

	answer := &model.Answer{}
	if err := json.Unmarshal(value, answer); err != nil {
		w.log.Warn("Discarding malformed cached answer", slog.String("error", err.Error()))
		return nil, false
	}
	answer.Cached = true
	answer.Steps = nil
	return answer, true
}

func (w *WikiGraph) storeAnswer(ctx context.Context, key string, answer *model.Answer) {
	if w.cache == nil {
		return
	}

	value, err := json.Marshal(answer)
	if err != nil {
		w.log.Warn("Error encoding answer for cache", slog.String("error", err.Error()))
		return
	}
	if err := w.cache.Set(ctx, key, value, w.Config.CacheTTL); err != nil {
		w.log.Warn("Response cache write failed", slog.String("error", err.Error()))
	}
}

// sources returns the distinct node ids of the chunks in order
func sources(chunks []*model.ScoredChunk) []string {
	seen := map[string]bool{}
	var ids []string
	for _, chunk := range chunks {
		if chunk == nil || seen[chunk.Hit.NodeID] {
			continue
		}
		seen[chunk.Hit.NodeID] = true
		ids = append(ids, chunk.Hit.NodeID)
	}
	return ids
}
