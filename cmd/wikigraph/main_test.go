package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestCommands(t *testing.T) {
	app := newApp()

	t.Run("All commands are registered", func(t *testing.T) {
		for _, name := range []string{"ask", "clarify", "metrics", "schedule", "tree", "serve", "reindex", "mcp"} {
			assert.NotNil(t, findCommand(app, name), "Expected command %s", name)
		}
	})

	t.Run("serve listens on 8080 by default", func(t *testing.T) {
		cmd := findCommand(app, "serve")
		require.NotNil(t, cmd)
		var addrFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "addr" {
				addrFlag = f
			}
		}
		require.NotNil(t, addrFlag)
		assert.Equal(t, ":8080", addrFlag.Value)
	})

	t.Run("Embedding dimension defaults to the hugot model", func(t *testing.T) {
		var dimFlag *cli.IntFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "embedding-dim" {
				dimFlag = f
			}
		}
		require.NotNil(t, dimFlag)
		assert.Equal(t, 384, dimFlag.Value)
	})
}

func TestArgumentValidation(t *testing.T) {
	run := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		app.ErrWriter = &bytes.Buffer{}
		return app.Run(append([]string{"wikigraph"}, args...))
	}

	t.Run("ask requires a question", func(t *testing.T) {
		err := run("ask")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question is required")
	})

	t.Run("clarify requires a clarification", func(t *testing.T) {
		err := run("clarify", "--conversation", "c-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "clarification is required")
	})

	t.Run("Unknown embedder is rejected before connecting", func(t *testing.T) {
		err := run("--embedder", "word2vec", "ask", "How do I enable SSO?")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid embedder")
	})

	t.Run("Unknown cache is rejected before connecting", func(t *testing.T) {
		err := run("--cache", "memcached", "tree")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cache")
	})

	t.Run("Invalid config file is reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hop_budget: 0\n"), 0600))

		err := run("--config", path, "metrics")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hop_budget")
	})
}

func TestSetupLogger(t *testing.T) {
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run("Accepts "+level, func(t *testing.T) {
			app := newApp()
			app.Action = func(c *cli.Context) error { return nil }
			assert.NoError(t, app.Run([]string{"wikigraph", "--log-level", level}))
		})
	}

	t.Run("Rejects unknown level", func(t *testing.T) {
		app := newApp()
		app.Action = func(c *cli.Context) error { return nil }
		err := app.Run([]string{"wikigraph", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("Debug level enables debug logs", func(t *testing.T) {
		app := newApp()
		app.Action = func(c *cli.Context) error { return nil }
		require.NoError(t, app.Run([]string{"wikigraph", "-l", "debug"}))
		assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	})
}
