package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/wikigraph"
	"github.com/siherrmann/wikigraph/core/cache"
	"github.com/siherrmann/wikigraph/core/embed"
	"github.com/siherrmann/wikigraph/core/llm"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

type page struct {
	id     string
	parent string
	title  string
	chunks []string
}

var pages = []page{
	{id: "platform", title: "Platform", chunks: []string{
		"The platform team owns the deployment pipeline, the service mesh and the identity services.",
	}},
	{id: "identity", parent: "platform", title: "Identity Services", chunks: []string{
		"The identity service handles single sign-on, session management and SCIM provisioning.",
		"Login requests are routed through the auth gateway before reaching the identity service.",
	}},
	{id: "runbook", parent: "identity", title: "Identity Runbook", chunks: []string{
		"If logins fail, check the Okta status page and restart the auth gateway pods.",
	}},
	{id: "teams", title: "Teams", chunks: []string{
		"The access team is a sub-team of platform and is on call for the identity service.",
	}},
}

func main() {
	ctx := context.Background()
	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)

	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:         "localhost",
		Port:         dbPort,
		Database:     "database",
		Username:     "user",
		Password:     "password",
		Schema:       "public",
		SSLMode:      "disable",
		MaxOpenConns: 10,
	}

	// Local sentence transformer, 384 dimensions
	embedder, err := embed.NewHugot(embed.DefaultHugotModel)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer embedder.Close()

	store, err := cache.OpenBadger("", true, logger)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer store.Close()

	metrics := helper.NewMetrics()
	config := model.DefaultConfig()
	opts := []wikigraph.Option{
		wikigraph.WithLogger(logger),
		wikigraph.WithPrometheus(metrics),
		wikigraph.WithCache(store),
		wikigraph.WithEmbedder(embed.NewCached(embedder, store, "hugot", config.CacheTTL, logger, metrics)),
	}

	// Planning, synthesis and verification need a chat model
	if llmConfig, err := llm.NewClientConfiguration(); err == nil {
		client, err := llm.NewClient(llmConfig, logger)
		if err != nil {
			log.Fatalf("Failed to create chat client: %v", err)
		}
		opts = append(opts, wikigraph.WithClassifier(client), wikigraph.WithSynthesizer(client), wikigraph.WithVerifier(client))
		fmt.Printf("Using chat model %s\n", llmConfig.Model)
	} else {
		fmt.Println("WIKIGRAPH_LLM_MODEL not set, planning every question as atomic")
	}

	w, err := wikigraph.NewWikiGraph(dbConfig, 384, config, opts...)
	if err != nil {
		log.Fatalf("Failed to create wikigraph: %v", err)
	}
	defer w.Close()

	for _, p := range pages {
		node := &model.DocumentNode{ID: p.id, SpaceID: "PLAT", Title: p.title}
		if p.parent != "" {
			parent := p.parent
			node.ParentID = &parent
		}
		if err := w.Nodes.UpsertNode(ctx, node); err != nil {
			log.Fatalf("Failed to upsert page %s: %v", p.id, err)
		}
		for i, text := range p.chunks {
			vector, err := embedder.Embed(ctx, text)
			if err != nil {
				log.Fatalf("Failed to embed chunk: %v", err)
			}
			chunk := &model.Chunk{NodeID: p.id, Content: text, Embedding: vector, ChunkIndex: i}
			if err := w.Chunks.InsertChunk(ctx, chunk); err != nil {
				log.Fatalf("Failed to insert chunk: %v", err)
			}
		}
	}
	for _, link := range []*model.Relation{
		{SourceID: "teams", TargetID: "identity", Type: model.RelationLinksTo},
		{SourceID: "runbook", TargetID: "teams", Type: model.RelationLinksTo},
	} {
		if err := w.Relations.InsertRelation(ctx, link); err != nil {
			log.Fatalf("Failed to link pages: %v", err)
		}
	}

	if _, err := w.RecomputeMetrics(ctx, nil); err != nil {
		log.Fatalf("Failed to compute graph metrics: %v", err)
	}

	questions := []string{
		"Which team is on call for the service that handles single sign-on?",
		"What should I do when logins fail?",
		"What should I do when logins fail?",
	}
	for _, question := range questions {
		answer, err := w.Ask(ctx, question)
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}

		fmt.Printf("\nQ: %s\nA: %s\n", question, answer.Answer)
		fmt.Printf("Kind: %s, confidence %.2f, cached %t\n", answer.Kind, answer.Confidence, answer.Cached)
		for _, step := range answer.Steps {
			fmt.Printf("  [hop %d] %-16s %s\n", step.Hop, step.State, step.Detail)
		}
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
