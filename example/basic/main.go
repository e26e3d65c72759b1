package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/wikigraph"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
)

type page struct {
	id     string
	parent string
	title  string
	text   string
}

var pages = []page{
	{id: "eng", title: "Engineering", text: "Engineering handbook covering platform, security and on-call."},
	{id: "security", parent: "eng", title: "Security", text: "Security policies for all internal services."},
	{id: "sso", parent: "security", title: "SSO Guide", text: "Single sign-on is provided by Okta for every internal tool."},
	{id: "okta", parent: "sso", title: "Okta Setup", text: "To enable SSO for a new app, open the Okta admin console, add a SAML integration and assign the engineering group."},
	{id: "oncall", parent: "eng", title: "On-call", text: "The platform team runs a weekly on-call rotation with PagerDuty."},
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	// Create database configuration using the container port
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

	// Keyword matches score low, accept them as direct answers for the demo
	config := model.DefaultConfig()
	config.ConfidenceThreshold = 0.05

	w, err := wikigraph.NewWikiGraph(dbConfig, 384, config)
	if err != nil {
		log.Fatalf("Failed to create wikigraph: %v", err)
	}
	defer w.Close()

	fmt.Println("Indexing pages...")
	for _, p := range pages {
		node := &model.DocumentNode{ID: p.id, SpaceID: "ENG", Title: p.title, Text: p.text}
		if p.parent != "" {
			parent := p.parent
			node.ParentID = &parent
		}
		if err := w.Nodes.UpsertNode(ctx, node); err != nil {
			log.Fatalf("Failed to upsert page %s: %v", p.id, err)
		}
		if err := w.Chunks.InsertChunk(ctx, &model.Chunk{NodeID: p.id, Content: p.text}); err != nil {
			log.Fatalf("Failed to insert chunk of %s: %v", p.id, err)
		}
	}
	link := &model.Relation{SourceID: "oncall", TargetID: "okta", Type: model.RelationLinksTo}
	if err := w.Relations.InsertRelation(ctx, link); err != nil {
		log.Fatalf("Failed to link pages: %v", err)
	}

	// Depth, counts and centrality feed the ranking
	report, err := w.RecomputeMetrics(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to compute graph metrics: %v", err)
	}
	fmt.Printf("Computed metrics for %d pages (%d written)\n", report.Nodes, report.Written)

	for _, question := range []string{"How do I enable SSO with Okta?", "Who approves budget requests?"} {
		answer, err := w.Ask(ctx, question)
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}
		fmt.Printf("\nQ: %s\nA: %s\n", question, answer.Answer)
		fmt.Printf("Kind: %s, confidence %.2f, sources %v\n", answer.Kind, answer.Confidence, answer.Sources)
	}

	tree, err := w.PageTree(ctx, "ENG", "okta")
	if err != nil {
		log.Fatalf("Failed to render page tree: %v", err)
	}
	fmt.Printf("\nPage tree:\n%s\n", tree)

	fmt.Println("\nBasic example completed successfully!")
}
