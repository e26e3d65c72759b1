package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/wikigraph/core/planner"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Planner classifies a query into a plan
type Planner interface {
	Plan(ctx context.Context, query string, hopBudget int) *model.QueryPlan
}

// Decider turns the aggregated result into a verdict
type Decider interface {
	Decide(ctx context.Context, result *model.RetrievalResult) *model.Verdict
}

// Orchestrator runs the multi-hop retrieval state machine:
// Planning, Retrieving, ExtractingSeed, Aggregating, Deciding, Done
type Orchestrator struct {
	index       DocumentIndex
	embedder    Embedder
	planner     Planner
	pathPlanner planner.PathPlanner
	decider     Decider
	config      model.Config
	logger      *slog.Logger
	metrics     *helper.Metrics
	tracer      trace.Tracer
}

// NewOrchestrator creates a new orchestrator. The embedder may be nil,
// in which case every hop is a keyword search.
func NewOrchestrator(index DocumentIndex, embedder Embedder, queryPlanner Planner, decider Decider, config model.Config, logger *slog.Logger, metrics *helper.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		index:    index,
		embedder: embedder,
		planner:  queryPlanner,
		decider:  decider,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		tracer:   helper.Tracer("retrieval"),
	}
}

// run is the state of a single request
type run struct {
	outcome    *model.Outcome
	prevNodeID string
	hopIndex   int
}

func (r *run) step(state model.OrchestratorState, hop int, detail string, start time.Time) {
	r.outcome.Steps = append(r.outcome.Steps, model.Step{
		State:    state,
		Hop:      hop,
		Detail:   detail,
		Duration: time.Since(start),
	})
}

// Run answers the query with a retrieval outcome. Per-hop failures are
// absorbed as empty hops. The only error returned is an unavailable
// document index.
func (o *Orchestrator) Run(ctx context.Context, query string) (*model.Outcome, error) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "retrieval.run")
	defer span.End()

	// One deadline for the whole request
	deadlineCtx, cancel := context.WithTimeout(ctx, o.config.RequestTimeout)
	defer cancel()

	r := &run{outcome: &model.Outcome{Result: model.NewRetrievalResult()}}

	// Planning
	start := time.Now()
	plan := o.plan(deadlineCtx, query)
	r.outcome.Plan = plan
	r.step(model.StatePlanning, 0, fmt.Sprintf("classified as %s with %d sub-questions", plan.Classification, len(plan.SubQuestions)), start)
	span.SetAttributes(attribute.String("wikigraph.classification", string(plan.Classification)))

	if plan.Classification == model.ClassificationClarification {
		r.step(model.StateDone, 0, "clarification requested", time.Now())
		o.metrics.Request(0, "", time.Since(started))
		return r.outcome, nil
	}

	// Retrieving and ExtractingSeed
	for {
		more, err := o.hop(deadlineCtx, r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.metrics.Request(r.outcome.CallCount, "", time.Since(started))
			return r.outcome, err
		}
		if !more {
			break
		}
		r.hopIndex++
	}

	// Aggregating
	start = time.Now()
	Aggregate(r.outcome.Result)
	r.step(model.StateAggregating, r.hopIndex, fmt.Sprintf("%d distinct chunks", r.outcome.Result.Len()), start)

	// Deciding runs even if the request deadline has passed
	start = time.Now()
	decideCtx, cancelDecide := context.WithTimeout(context.WithoutCancel(ctx), o.config.RequestTimeout)
	defer cancelDecide()
	verdict := o.decider.Decide(decideCtx, r.outcome.Result)
	r.outcome.Verdict = verdict
	r.step(model.StateDeciding, r.hopIndex, fmt.Sprintf("%s (confidence %.2f)", verdict.Kind, verdict.Confidence), start)

	r.step(model.StateDone, r.hopIndex, "", time.Now())
	span.SetAttributes(
		attribute.Int("wikigraph.calls", r.outcome.CallCount),
		attribute.String("wikigraph.verdict", string(verdict.Kind)),
		attribute.Bool("wikigraph.truncated", plan.Truncated),
		attribute.Bool("wikigraph.timed_out", r.outcome.TimedOut),
	)
	o.metrics.Request(r.outcome.CallCount, string(verdict.Kind), time.Since(started))

	return r.outcome, nil
}

func (o *Orchestrator) plan(ctx context.Context, query string) *model.QueryPlan {
	var plan *model.QueryPlan
	if o.planner != nil {
		plan = o.planner.Plan(ctx, query, o.config.HopBudget)
	}
	if plan == nil || (plan.Classification != model.ClassificationClarification && len(plan.SubQuestions) == 0) {
		plan = model.NewAtomicPlan(query, o.config.HopBudget)
	}
	return plan
}

// hop runs one Retrieving and ExtractingSeed cycle and reports whether
// the loop continues
func (o *Orchestrator) hop(ctx context.Context, r *run) (bool, error) {
	plan := r.outcome.Plan

	start := time.Now()
	if err := ctx.Err(); err != nil {
		r.outcome.TimedOut = true
		r.step(model.StateRetrieving, r.hopIndex, "request deadline reached", start)
		return false, nil
	}

	hopPlan := o.pathPlanner.Plan(r.prevNodeID, r.hopIndex, o.config.HopBudget, o.config.EdgeTypes)
	if hopPlan.Kind == model.HopTruncate {
		plan.Truncated = true
		budgetErr := &model.BudgetExceeded{Budget: o.config.HopBudget, Requested: len(plan.SubQuestions)}
		r.step(model.StateRetrieving, r.hopIndex, budgetErr.Error(), start)
		return false, nil
	}

	question := plan.SubQuestions[r.hopIndex]
	hopCtx, span := o.tracer.Start(ctx, "retrieval.hop", trace.WithAttributes(
		attribute.Int("wikigraph.hop", r.hopIndex),
		attribute.String("wikigraph.hop_kind", string(hopPlan.Kind)),
	))
	hits, err := o.searchWithRetry(hopCtx, question, hopPlan.Filter)
	span.End()
	r.outcome.CallCount++

	if err != nil {
		if errors.Is(err, model.ErrCapabilityUnavailable) {
			o.metrics.RetrievalCall("unavailable")
			r.step(model.StateRetrieving, r.hopIndex, err.Error(), start)
			return false, helper.NewError("retrieval", err)
		}

		o.metrics.RetrievalCall("failed")
		if ctx.Err() != nil {
			r.outcome.TimedOut = true
			err = &model.RetrievalTimeout{Hop: r.hopIndex, Err: err}
		}
		o.logger.Warn("Retrieval failed, treating hop as empty", slog.Int("hop", r.hopIndex), slog.String("error", err.Error()))
		hits = nil
	} else if len(hits) == 0 {
		o.metrics.RetrievalCall("empty")
	} else {
		o.metrics.RetrievalCall("ok")
	}
	r.step(model.StateRetrieving, r.hopIndex, fmt.Sprintf("%s search for %q returned %d hits", hopPlan.Kind, question, len(hits)), start)

	start = time.Now()
	scored := ScoreHits(hits, r.hopIndex, o.config)
	for _, chunk := range scored {
		r.outcome.Result.Add(chunk)
	}
	seed, ok := planner.SelectSeed(scored)
	if ok {
		r.prevNodeID = seed
	}
	r.step(model.StateExtractingSeed, r.hopIndex, fmt.Sprintf("seed %q", seed), start)

	if r.outcome.TimedOut {
		return false, nil
	}
	return r.hopIndex+1 < len(plan.SubQuestions) && len(scored) > 0, nil
}
