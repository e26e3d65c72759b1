package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	spaceFlag := &cli.StringFlag{
		Name:    "space",
		Aliases: []string{"s"},
		Usage:   "Wiki space id, all spaces if empty",
	}

	return &cli.App{
		Name:    "wikigraph",
		Usage:   "Answer questions from a hierarchical wiki with graph-aware retrieval",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a yaml configuration file",
			},
			&cli.IntFlag{
				Name:  "embedding-dim",
				Usage: "Dimension of the chunk embeddings",
				Value: 384,
			},
			&cli.StringFlag{
				Name:  "embedder",
				Usage: "Query embedder (none, hugot, remote)",
				Value: "none",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name, the hugot default model if empty",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Response and embedding cache (none, redis, badger)",
				Value: "none",
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis url or host:port",
				Value:   "localhost:6379",
				EnvVars: []string{"WIKIGRAPH_REDIS_URL"},
			},
			&cli.StringFlag{
				Name:  "badger-path",
				Usage: "Directory of the badger cache, in memory if empty",
			},
			&cli.BoolFlag{
				Name:  "llm",
				Usage: "Use the WIKIGRAPH_LLM_* chat model to plan, synthesize and verify",
			},
			&cli.StringFlag{
				Name:    "otel-endpoint",
				Usage:   "OTLP gRPC endpoint for traces, tracing is off if empty",
				EnvVars: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer a question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full answer as JSON",
					},
					&cli.BoolFlag{
						Name:  "steps",
						Usage: "Print the thinking process",
					},
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Conversation id to continue, needs --cache redis or badger",
					},
				},
			},
			{
				Name:      "clarify",
				Usage:     "Answer the last question of a conversation again with a clarification",
				ArgsUsage: "<clarification>",
				Action:    clarifyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "conversation",
						Usage:    "Conversation id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full answer as JSON",
					},
					&cli.BoolFlag{
						Name:  "steps",
						Usage: "Print the thinking process",
					},
				},
			},
			{
				Name:   "metrics",
				Usage:  "Recompute the graph metrics of all pages once",
				Action: metricsCommand,
				Flags:  []cli.Flag{spaceFlag},
			},
			{
				Name:   "schedule",
				Usage:  "Recompute the graph metrics at the configured interval",
				Action: scheduleCommand,
				Flags:  []cli.Flag{spaceFlag},
			},
			{
				Name:   "tree",
				Usage:  "Print the page tree as markdown",
				Action: treeCommand,
				Flags: []cli.Flag{
					spaceFlag,
					&cli.StringSliceFlag{
						Name:  "highlight",
						Usage: "Page ids to mark in bold",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":8080",
					},
					&cli.BoolFlag{
						Name:  "schedule",
						Usage: "Also recompute graph metrics in the background",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the chunk embedding index",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Index type (hnsw, ivfflat)",
						Value: "hnsw",
					},
					&cli.IntFlag{
						Name:  "m",
						Usage: "HNSW connections per layer",
						Value: 16,
					},
					&cli.IntFlag{
						Name:  "ef-construction",
						Usage: "HNSW candidate list size while building",
						Value: 64,
					},
					&cli.IntFlag{
						Name:  "lists",
						Usage: "IVFFlat list count",
						Value: 100,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: mcpCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	// stdout belongs to command output and the MCP transport
	slog.SetDefault(helper.NewLogger(os.Stderr, level))
	return nil
}
