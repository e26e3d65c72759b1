package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/siherrmann/wikigraph"
)

// AskWikiArgs are the arguments of the ask_wiki tool
type AskWikiArgs struct {
	Query          string `json:"query" jsonschema:"The question to answer from the wiki"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"Conversation to continue, a new one is started if empty"`
}

// AskWikiResult is the answer of the ask_wiki tool
type AskWikiResult struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Answer         string   `json:"answer"`
	Kind           string   `json:"kind,omitempty"`
	Confidence     float64  `json:"confidence"`
	Sources        []string `json:"sources,omitempty"`
	Location       string   `json:"location,omitempty"`
	Incomplete     bool     `json:"incomplete"`
	Clarification  bool     `json:"clarification"`
}

// PageTreeArgs are the arguments of the page_tree tool
type PageTreeArgs struct {
	SpaceID   string   `json:"space_id,omitempty" jsonschema:"The wiki space to render, all spaces if empty"`
	Highlight []string `json:"highlight,omitempty" jsonschema:"Page ids to mark in bold"`
}

// PageTreeResult is the markdown page tree
type PageTreeResult struct {
	Tree string `json:"tree"`
}

type tools struct {
	service Service
	logger  *slog.Logger
}

// NewMCPServer creates an MCP server exposing the ask_wiki and page_tree tools
func NewMCPServer(service Service, version string, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	t := &tools{service: service, logger: logger}

	s := mcp.NewServer(&mcp.Implementation{
		Name:    serviceName,
		Version: version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ask_wiki",
		Description: "Answer a question from the company wiki. Returns a direct answer with its source pages, or the place in the page hierarchy where the answer may be found.",
	}, t.askWiki)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "page_tree",
		Description: "Render the page hierarchy of a wiki space as a nested markdown list.",
	}, t.pageTree)

	return s
}

func (t *tools) askWiki(ctx context.Context, req *mcp.CallToolRequest, args AskWikiArgs) (*mcp.CallToolResult, AskWikiResult, error) {
	answer, err := t.service.Converse(ctx, args.ConversationID, args.Query)
	if err != nil {
		t.logger.Error("Error answering tool call", slog.String("error", err.Error()))
		return nil, AskWikiResult{}, fmt.Errorf("ask wiki: %w", err)
	}

	result := AskWikiResult{
		ConversationID: answer.ConversationID,
		Answer:         answer.Answer,
		Kind:           string(answer.Kind),
		Confidence:     answer.Confidence,
		Sources:        answer.Sources,
		Incomplete:     answer.Incomplete,
		Clarification:  answer.Clarification,
	}
	if len(answer.Breadcrumbs) > 0 {
		result.Location = wikigraph.FormatBreadcrumbs(answer.Breadcrumbs)
	}
	return nil, result, nil
}

func (t *tools) pageTree(ctx context.Context, req *mcp.CallToolRequest, args PageTreeArgs) (*mcp.CallToolResult, PageTreeResult, error) {
	tree, err := t.service.PageTree(ctx, args.SpaceID, args.Highlight...)
	if err != nil {
		return nil, PageTreeResult{}, fmt.Errorf("page tree: %w", err)
	}
	return nil, PageTreeResult{Tree: tree}, nil
}
