package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/siherrmann/wikigraph"
	"github.com/siherrmann/wikigraph/api"
	"github.com/siherrmann/wikigraph/core/cache"
	"github.com/siherrmann/wikigraph/core/embed"
	"github.com/siherrmann/wikigraph/core/llm"
	"github.com/siherrmann/wikigraph/database"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/urfave/cli/v2"
)

// build wires a WikiGraph from the global flags. The returned cleanup
// releases everything that was opened, in reverse order.
func build(c *cli.Context) (*wikigraph.WikiGraph, func(), error) {
	logger := slog.Default()

	embedderKind := c.String("embedder")
	if embedderKind != "none" && embedderKind != "hugot" && embedderKind != "remote" {
		return nil, nil, fmt.Errorf("invalid embedder %q: must be one of none, hugot, remote", embedderKind)
	}
	cacheKind := c.String("cache")
	if cacheKind != "none" && cacheKind != "redis" && cacheKind != "badger" {
		return nil, nil, fmt.Errorf("invalid cache %q: must be one of none, redis, badger", cacheKind)
	}

	config, err := model.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*wikigraph.WikiGraph, func(), error) {
		cleanup()
		return nil, nil, err
	}

	shutdownTracer, err := helper.InitTracer(c.Context, "wikigraph", c.String("otel-endpoint"), 1.0)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Error shutting down tracer", slog.String("error", err.Error()))
		}
	})

	metrics := helper.NewMetrics()
	opts := []wikigraph.Option{wikigraph.WithLogger(logger), wikigraph.WithPrometheus(metrics)}

	// Cache
	var store cache.Cache
	switch cacheKind {
	case "redis":
		store, err = cache.NewRedis(c.Context, c.String("redis-url"), os.Getenv("WIKIGRAPH_REDIS_PASSWORD"), 0, "wikigraph")
	case "badger":
		store, err = cache.OpenBadger(c.String("badger-path"), c.String("badger-path") == "", logger)
	}
	if err != nil {
		return fail(err)
	}
	if store != nil {
		cleanups = append(cleanups, func() { _ = store.Close() })
		opts = append(opts, wikigraph.WithCache(store))
	}

	// Embedder
	var embedder embed.Embedder
	embeddingModel := c.String("embedding-model")
	switch embedderKind {
	case "hugot":
		local, err := embed.NewHugot(embeddingModel)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = local.Close() })
		embedder = local
	case "remote":
		if embeddingModel == "" {
			return fail(fmt.Errorf("embedding-model is required for the remote embedder"))
		}
		llmConfig, err := llm.NewClientConfiguration()
		if err != nil {
			return fail(err)
		}
		embedder, err = embed.NewLangChain(llmConfig.BaseURL, llmConfig.Token, embeddingModel, logger)
		if err != nil {
			return fail(err)
		}
	}
	if embedder != nil {
		if store != nil {
			embedder = embed.NewCached(embedder, store, embedderKind+":"+embeddingModel, config.CacheTTL, logger, metrics)
		}
		opts = append(opts, wikigraph.WithEmbedder(embedder))
	}

	// Text understanding and generation
	if c.Bool("llm") {
		llmConfig, err := llm.NewClientConfiguration()
		if err != nil {
			return fail(err)
		}
		client, err := llm.NewClient(llmConfig, logger)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, wikigraph.WithClassifier(client), wikigraph.WithSynthesizer(client), wikigraph.WithVerifier(client))
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return fail(err)
	}
	w, err := wikigraph.NewWikiGraph(dbConfig, c.Int("embedding-dim"), config, opts...)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() { _ = w.Close() })

	return w, cleanup, nil
}

func spaceOf(c *cli.Context) *string {
	if space := c.String("space"); space != "" {
		return &space
	}
	return nil
}

func askCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("question is required")
	}

	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := w.Converse(c.Context, c.String("conversation"), query)
	if err != nil {
		return err
	}
	return writeAnswer(c, answer)
}

func clarifyCommand(c *cli.Context) error {
	clarification := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if clarification == "" {
		return fmt.Errorf("clarification is required")
	}

	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := w.Clarify(c.Context, c.String("conversation"), clarification)
	if err != nil {
		return err
	}
	return writeAnswer(c, answer)
}

func writeAnswer(c *cli.Context, answer *model.Answer) error {
	if c.Bool("json") {
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(answer)
	}
	printAnswer(c, answer)
	return nil
}

func printAnswer(c *cli.Context, answer *model.Answer) {
	out := c.App.Writer
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	if answer.Cached {
		fmt.Fprintln(out, "(cached)")
	}
	if answer.ConversationID != "" {
		fmt.Fprintf(out, "Conversation: %s\n", answer.ConversationID)
	}
	if c.Bool("steps") {
		fmt.Fprintln(out, "\nThinking process:")
		for _, step := range answer.Steps {
			fmt.Fprintf(out, "  [hop %d] %-16s %s (%s)\n", step.Hop, step.State, step.Detail, step.Duration)
		}
	}
}

func metricsCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := w.RecomputeMetrics(c.Context, spaceOf(c))
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func scheduleCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, err := w.StartScheduler(spaceOf(c))
	if err != nil {
		return err
	}
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

func treeCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	tree, err := w.PageTree(c.Context, c.String("space"), c.StringSlice("highlight")...)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tree)
	return nil
}

func serveCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("schedule") {
		scheduler, err := w.StartScheduler(nil)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	router := api.NewRouter(w, w.Prometheus.Registry, slog.Default())
	return api.Serve(ctx, c.String("addr"), router, slog.Default())
}

func reindexCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	return w.Chunks.RebuildVectorIndex(c.Context, database.VectorIndexOptions{
		Type:           database.VectorIndexType(c.String("type")),
		M:              c.Int("m"),
		EfConstruction: c.Int("ef-construction"),
		Lists:          c.Int("lists"),
	})
}

func mcpCommand(c *cli.Context) error {
	w, cleanup, err := build(c)
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.NewMCPServer(w, version, slog.Default())
	return server.Run(c.Context, &mcp.StdioTransport{})
}
