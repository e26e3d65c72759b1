package wikigraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/siherrmann/wikigraph/core/confidence"
	"github.com/siherrmann/wikigraph/core/graph"
	"github.com/siherrmann/wikigraph/core/metrics"
	"github.com/siherrmann/wikigraph/core/planner"
	"github.com/siherrmann/wikigraph/core/retrieval"
	"github.com/siherrmann/wikigraph/database"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	loadSql "github.com/siherrmann/wikigraph/sql"
)

// Synthesizer writes an answer to a question from retrieved chunks
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []*model.ScoredChunk) (string, error)
}

// Verifier checks a synthesized answer against the chunks it was written from
type Verifier interface {
	Verify(ctx context.Context, answer string, chunks []*model.ScoredChunk) (*model.Verification, error)
}

// ResponseCache stores serialized answers by key
type ResponseCache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FeedbackRecorder stores the relations learned from decomposed questions
type FeedbackRecorder interface {
	InsertRelation(ctx context.Context, relation *model.Relation) error
}

type runner interface {
	Run(ctx context.Context, query string) (*model.Outcome, error)
}

type chainer interface {
	Chain(ctx context.Context, hit *model.SearchHit) []model.Breadcrumb
}

// WikiGraph provides a unified interface to the wiki graph and the answer flow
type WikiGraph struct {
	DB           *helper.Database
	Nodes        *database.NodesDBHandler
	Relations    *database.RelationsDBHandler
	Chunks       *database.ChunksDBHandler
	Index        *retrieval.BreakerIndex
	Orchestrator *retrieval.Orchestrator
	Confidence   *confidence.Engine
	Metrics      *metrics.Engine
	Prometheus   *helper.Metrics
	Config       model.Config

	// Optional capabilities
	classifier  planner.Classifier
	embedder    retrieval.Embedder
	synthesizer Synthesizer
	verifier    Verifier
	cache       ResponseCache

	conversations  ResponseCache
	conversationMu sync.Mutex

	runner   runner
	chainer  chainer
	feedback FeedbackRecorder
	// Logging
	log *slog.Logger
}

// Option configures optional capabilities of a WikiGraph
type Option func(*WikiGraph)

// WithClassifier sets the text understanding capability used to plan queries.
// Without a classifier every query is planned as atomic.
func WithClassifier(classifier planner.Classifier) Option {
	return func(w *WikiGraph) { w.classifier = classifier }
}

// WithEmbedder sets the query embedder. Without one search is keyword only.
func WithEmbedder(embedder retrieval.Embedder) Option {
	return func(w *WikiGraph) { w.embedder = embedder }
}

// WithSynthesizer sets the answer writer. Without one the best chunk is returned.
func WithSynthesizer(synthesizer Synthesizer) Option {
	return func(w *WikiGraph) { w.synthesizer = synthesizer }
}

// WithVerifier sets the answer checker
func WithVerifier(verifier Verifier) Option {
	return func(w *WikiGraph) { w.verifier = verifier }
}

// WithCache sets the response cache
func WithCache(cache ResponseCache) Option {
	return func(w *WikiGraph) { w.cache = cache }
}

// WithLogger replaces the default pretty logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *WikiGraph) { w.log = logger }
}

// WithPrometheus sets the metrics collectors, for example to share a registry
func WithPrometheus(m *helper.Metrics) Option {
	return func(w *WikiGraph) { w.Prometheus = m }
}

// NewWikiGraph creates a new WikiGraph instance with all handlers and engines initialized
func NewWikiGraph(dbConfig *helper.DatabaseConfiguration, embeddingDim int, config model.Config, opts ...Option) (*WikiGraph, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	w := &WikiGraph{Config: config}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}
	if w.Prometheus == nil {
		w.Prometheus = helper.NewMetrics()
	}
	if w.conversations == nil {
		w.conversations = w.cache
	}

	// Initialize database
	db := helper.NewDatabase("wikigraph", dbConfig, w.log)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Relations first, node upserts maintain hierarchy relations
	// force=false to not reload if functions already exist
	relations, err := database.NewRelationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relations handler", err)
	}

	nodes, err := database.NewNodesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create nodes handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	queryPlanner, err := planner.NewQueryPlanner(w.classifier, config, w.log, w.Prometheus)
	if err != nil {
		return nil, helper.NewError("create query planner", err)
	}

	w.DB = db
	w.Nodes = nodes
	w.Relations = relations
	w.Chunks = chunks
	w.Index = retrieval.NewBreakerIndex(chunks, retrieval.DefaultBreakerSettings(), w.log, w.Prometheus)
	w.Confidence = confidence.NewEngine(nodes, config, w.log)
	w.Orchestrator = retrieval.NewOrchestrator(w.Index, w.embedder, queryPlanner, w.Confidence, config, w.log, w.Prometheus)
	w.Metrics = metrics.NewEngine(nodes, graph.NewClient(relations), nodes, config, w.log, w.Prometheus)
	w.runner = w.Orchestrator
	w.chainer = w.Confidence
	w.feedback = relations

	return w, nil
}

// Close closes the database connection
func (w *WikiGraph) Close() error {
	if w.DB != nil && w.DB.Instance != nil {
		return w.DB.Instance.Close()
	}
	return nil
}

// RecomputeMetrics runs one graph metrics pass over a space, or all spaces if spaceID is nil
func (w *WikiGraph) RecomputeMetrics(ctx context.Context, spaceID *string) (*metrics.PassReport, error) {
	report, err := w.Metrics.Run(ctx, spaceID)
	if err != nil {
		return nil, helper.NewError("recompute metrics", err)
	}
	return report, nil
}

// StartScheduler recomputes the graph metrics every configured interval until stopped
func (w *WikiGraph) StartScheduler(spaceID *string) (*metrics.Scheduler, error) {
	scheduler := metrics.NewScheduler(w.Metrics, spaceID)
	if err := scheduler.Start(w.Config.MetricsInterval); err != nil {
		return nil, helper.NewError("start metrics scheduler", err)
	}
	w.log.Info("Started graph metrics scheduler", slog.Duration("interval", w.Config.MetricsInterval))
	return scheduler, nil
}

// PageTree renders the page tree of a space as markdown with the highlighted nodes in bold.
// An empty spaceID renders all spaces.
func (w *WikiGraph) PageTree(ctx context.Context, spaceID string, highlight ...string) (string, error) {
	var space *string
	if spaceID != "" {
		space = &spaceID
	}
	nodes, err := w.Nodes.SelectNodes(ctx, space)
	if err != nil {
		return "", helper.NewError("select nodes", err)
	}
	if len(nodes) == 0 {
		return "", helper.NewError("page tree", fmt.Errorf("%w: space %q has no pages", model.ErrNotFound, spaceID))
	}

	marked := map[string]bool{}
	for _, id := range highlight {
		marked[id] = true
	}
	return graph.NewHierarchy(nodes).RenderMarkdown(spaceID, graph.TreeOptions{Highlight: marked}), nil
}
