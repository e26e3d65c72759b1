package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/siherrmann/wikigraph/core/graph"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

// GraphTraversal returns neighbouring node ids over one relation type
type GraphTraversal interface {
	Neighbors(ctx context.Context, nodeID string, relationType model.RelationType, maxDepth int) ([]string, error)
}

// NodeSource lists the nodes of a space, or of all spaces if spaceID is nil
type NodeSource interface {
	SelectNodes(ctx context.Context, spaceID *string) ([]*model.DocumentNode, error)
}

// MetricsStore persists node metrics with optimistic concurrency
type MetricsStore interface {
	SelectNodeVersion(ctx context.Context, id string) (int64, error)
	UpdateNodeMetrics(ctx context.Context, id string, expectedVersion int64, metrics model.NodeMetrics) (int64, error)
}

// PassReport summarizes one recomputation pass
type PassReport struct {
	Nodes           int           `json:"nodes"`
	Written         int           `json:"written"`
	Unchanged       int           `json:"unchanged"`
	Conflicts       int           `json:"conflicts"`
	Failed          int           `json:"failed"`
	Degraded        int           `json:"degraded"`
	IntegrityIssues int           `json:"integrity_issues"`
	Duration        time.Duration `json:"duration"`
}

// Adjacency holds the cross-link neighbours of every node
type Adjacency struct {
	LinksTo    map[string][]string
	LinkedFrom map[string][]string
}

// Engine computes the topology metrics of all nodes and writes them back
type Engine struct {
	nodes     NodeSource
	traversal GraphTraversal
	store     MetricsStore
	config    model.Config
	logger    *slog.Logger
	metrics   *helper.Metrics
}

// NewEngine creates a new graph metrics engine
func NewEngine(nodes NodeSource, traversal GraphTraversal, store MetricsStore, config model.Config, logger *slog.Logger, metrics *helper.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		nodes:     nodes,
		traversal: traversal,
		store:     store,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run recomputes and persists the metrics of all nodes of a space
// (all spaces if spaceID is nil). Only a failure to list the nodes or
// to start the worker pool aborts the pass.
func (e *Engine) Run(ctx context.Context, spaceID *string) (*PassReport, error) {
	start := time.Now()

	nodes, err := e.nodes.SelectNodes(ctx, spaceID)
	if err != nil {
		return nil, helper.NewError("select nodes", err)
	}

	pool, err := ants.NewPool(e.config.MetricsWorkers)
	if err != nil {
		return nil, helper.NewError("create worker pool", err)
	}
	defer pool.Release()

	report := &PassReport{Nodes: len(nodes)}

	adjacency, degraded := e.fetchAdjacency(ctx, pool, nodes)
	report.Degraded = degraded

	computed, issues := e.Compute(nodes, adjacency)
	report.IntegrityIssues = len(issues)

	e.writeBack(ctx, pool, nodes, computed, report)

	report.Duration = time.Since(start)
	e.metrics.MetricsPass(report.Duration)
	e.logger.Info(
		"Graph metrics pass finished",
		slog.Int("nodes", report.Nodes),
		slog.Int("written", report.Written),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("conflicts", report.Conflicts),
		slog.Int("failed", report.Failed),
		slog.Int("degraded", report.Degraded),
		slog.Int("integrity_issues", report.IntegrityIssues),
		slog.Duration("duration", report.Duration),
	)

	return report, ctx.Err()
}

// fetchAdjacency loads the LinksTo and LinkedFrom neighbours of every node
// in parallel. A node whose neighbours cannot be loaded keeps empty links.
func (e *Engine) fetchAdjacency(ctx context.Context, pool *ants.Pool, nodes []*model.DocumentNode) (Adjacency, int) {
	adjacency := Adjacency{
		LinksTo:    make(map[string][]string, len(nodes)),
		LinkedFrom: make(map[string][]string, len(nodes)),
	}
	degraded := 0

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		nodeID := node.ID
		err := pool.Submit(func() {
			defer wg.Done()

			linksTo, errTo := e.traversal.Neighbors(ctx, nodeID, model.RelationLinksTo, 1)
			linkedFrom, errFrom := e.traversal.Neighbors(ctx, nodeID, model.RelationLinkedFrom, 1)

			mu.Lock()
			defer mu.Unlock()
			if err := errors.Join(errTo, errFrom); err != nil {
				degraded++
				e.logger.Warn("Traversal failed, treating links as empty", slog.String("node_id", nodeID), slog.String("error", err.Error()))
				return
			}
			adjacency.LinksTo[nodeID] = dedupe(linksTo)
			adjacency.LinkedFrom[nodeID] = dedupe(linkedFrom)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			degraded++
			mu.Unlock()
			e.logger.Warn("Submitting traversal failed", slog.String("node_id", nodeID), slog.String("error", err.Error()))
		}
	}
	wg.Wait()

	return adjacency, degraded
}

// Compute derives the metrics of every node from the hierarchy and the
// cross-link adjacency. Hierarchy integrity issues are logged, the
// affected nodes are treated as roots.
func (e *Engine) Compute(nodes []*model.DocumentNode, adjacency Adjacency) (map[string]model.NodeMetrics, []*model.GraphIntegrityError) {
	hierarchy := graph.NewHierarchy(nodes)

	var issues []*model.GraphIntegrityError
	for _, id := range hierarchy.Dangling() {
		node, _ := hierarchy.Node(id)
		issue := &model.GraphIntegrityError{Kind: model.IntegrityDangling, NodeID: id, Path: []string{id, node.Parent()}}
		issues = append(issues, issue)
		e.metrics.IntegrityIssue(string(model.IntegrityDangling))
		e.logger.Warn("Dangling parent reference, treating node as root", slog.String("node_id", id), slog.String("parent_id", node.Parent()))
	}

	ids := hierarchy.IDs()
	centrality := Centrality(e.config, ids, adjacency.LinksTo, adjacency.LinkedFrom)

	computed := make(map[string]model.NodeMetrics, len(ids))
	for _, id := range ids {
		depth, err := hierarchy.Depth(id)
		if err != nil {
			var integrityErr *model.GraphIntegrityError
			if errors.As(err, &integrityErr) {
				issues = append(issues, integrityErr)
				e.metrics.IntegrityIssue(string(integrityErr.Kind))
			}
			e.logger.Warn("Hierarchy walk failed, treating node as root", slog.String("node_id", id), slog.String("error", err.Error()))
			depth = 0
		}

		computed[id] = model.NodeMetrics{
			HierarchyDepth:  depth,
			ChildCount:      len(hierarchy.Children(id)),
			SiblingCount:    hierarchy.Siblings(id),
			RelatedCount:    len(union(adjacency.LinksTo[id], adjacency.LinkedFrom[id])),
			CentralityScore: centrality[id],
		}
	}

	return computed, issues
}

// writeBack persists changed metrics in batches. Each write is guarded by
// the node version and retried with a fresh version on conflict.
func (e *Engine) writeBack(ctx context.Context, pool *ants.Pool, nodes []*model.DocumentNode, computed map[string]model.NodeMetrics, report *PassReport) {
	var pending []*model.DocumentNode
	for _, node := range nodes {
		if node.Metrics() == computed[node.ID] {
			report.Unchanged++
			continue
		}
		pending = append(pending, node)
	}

	var mu sync.Mutex
	for start := 0; start < len(pending); start += e.config.MetricsBatchSize {
		if ctx.Err() != nil {
			mu.Lock()
			report.Failed += len(pending) - start
			mu.Unlock()
			break
		}

		end := min(start+e.config.MetricsBatchSize, len(pending))
		var wg sync.WaitGroup
		for _, node := range pending[start:end] {
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				conflicts, err := e.writeNode(ctx, node.ID, node.Version, computed[node.ID])

				mu.Lock()
				defer mu.Unlock()
				report.Conflicts += conflicts
				if err != nil {
					report.Failed++
					e.logger.Warn("Writing node metrics failed", slog.String("node_id", node.ID), slog.String("error", err.Error()))
					return
				}
				report.Written++
			})
			if err != nil {
				wg.Done()
				mu.Lock()
				report.Failed++
				mu.Unlock()
			}
		}
		wg.Wait()
	}

	e.metrics.MetricsWrite("written", report.Written)
	e.metrics.MetricsWrite("conflict", report.Conflicts)
	e.metrics.MetricsWrite("failed", report.Failed)
}

// writeNode writes the metrics of one node and returns the number of
// version conflicts it ran into
func (e *Engine) writeNode(ctx context.Context, id string, version int64, metrics model.NodeMetrics) (int, error) {
	conflicts := 0
	for attempt := 0; attempt <= e.config.MetricsWriteRetries; attempt++ {
		_, err := e.store.UpdateNodeMetrics(ctx, id, version, metrics)
		if err == nil {
			return conflicts, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			return conflicts, err
		}

		conflicts++
		version, err = e.store.SelectNodeVersion(ctx, id)
		if err != nil {
			return conflicts, err
		}
	}
	return conflicts, fmt.Errorf("node %s: %w after %d retries", id, model.ErrVersionConflict, e.config.MetricsWriteRetries)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func union(a []string, b []string) []string {
	out := dedupe(append(append([]string(nil), a...), b...))
	sort.Strings(out)
	return out
}
