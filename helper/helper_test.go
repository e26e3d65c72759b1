package helper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps error with operation", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewError("select node", cause)

		assert.Equal(t, "select node: connection reset", err.Error())
		assert.True(t, errors.Is(err, cause), "Expected wrapped error to match cause")
	})

	t.Run("Nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("select node", nil))
	})
}

func TestStripCodeFence(t *testing.T) {
	t.Run("Strips fences with and without language tag", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
		assert.Equal(t, `{"a":1}`, StripCodeFence("```JSON\n{\"a\":1}\n```"), "Expected any language tag to be dropped")
		assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
		assert.Equal(t, `{"a":1}`, StripCodeFence("```{\"a\":1}```"))
		assert.Equal(t, `{"a":1}`, StripCodeFence("```json{\"a\":1}```"))
		assert.Equal(t, `["a","b"]`, StripCodeFence("```json\n[\"a\",\"b\"]\n```"))
	})

	t.Run("Unfenced content is trimmed", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1} "))
	})
}

func TestQueryHash(t *testing.T) {
	t.Run("Hash ignores case and surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, QueryHash("How do I enable SSO?"), QueryHash("  how do i enable sso?\n"))
	})

	t.Run("Hash is md5 hex", func(t *testing.T) {
		hash := QueryHash("sso")
		assert.Len(t, hash, 32)
		assert.Equal(t, strings.ToLower(hash), hash)
		assert.NotEqual(t, QueryHash("sso"), QueryHash("saml"))
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("Succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(ctx, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}, 3, time.Millisecond)

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Returns last error after max attempts", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(ctx, func(ctx context.Context) error {
			attempts++
			return errors.New("still failing")
		}, 2, time.Millisecond)

		assert.EqualError(t, err, "still failing")
		assert.Equal(t, 2, attempts, "Expected exactly max attempts")
	})

	t.Run("Delay doubles between attempts", func(t *testing.T) {
		var starts []time.Time
		_ = RetryWithBackoff(ctx, func(ctx context.Context) error {
			starts = append(starts, time.Now())
			return errors.New("fail")
		}, 3, 20*time.Millisecond)

		require.Len(t, starts, 3)
		assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 20*time.Millisecond)
		assert.GreaterOrEqual(t, starts[2].Sub(starts[1]), 40*time.Millisecond)
	})

	t.Run("Permanent error stops retrying", func(t *testing.T) {
		cause := errors.New("unavailable")
		attempts := 0
		err := RetryWithBackoff(ctx, func(ctx context.Context) error {
			attempts++
			return &Permanent{Err: cause}
		}, 3, time.Millisecond)

		assert.Equal(t, cause, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("Cancelled context stops waiting", func(t *testing.T) {
		cancelCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := RetryWithBackoff(cancelCtx, func(ctx context.Context) error {
			return errors.New("fail")
		}, 3, time.Second)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second, "Expected retry to stop at the deadline")
	})

	t.Run("Invalid max attempts", func(t *testing.T) {
		err := RetryWithBackoff(ctx, func(ctx context.Context) error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})
}

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from env", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "5433", config.Port)
		assert.Equal(t, "database", config.Database)
		assert.Contains(t, config.DatabaseConnectionString(), "localhost:5433/database")
		assert.Contains(t, config.DatabaseConnectionString(), "sslmode=disable")
	})

	t.Run("Missing env returns error", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err)
	})
}

func TestMetrics(t *testing.T) {
	t.Run("Nil metrics are safe to use", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.RetrievalCall("ok")
			m.Request(1, "direct_answer", time.Second)
			m.CacheLookup("response", true)
		})
	})

	t.Run("Counters are registered on own registry", func(t *testing.T) {
		m := NewMetrics()
		m.RetrievalCall("failed")
		m.RetrievalCall("failed")
		m.MetricsWrite("conflict", 3)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievalCalls.WithLabelValues("failed")))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.metricsWrites.WithLabelValues("conflict")))

		families, err := m.Registry.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}

func TestPrepareModel(t *testing.T) {
	t.Run("Return existing model path when model exists", func(t *testing.T) {
		modelPath := filepath.Join(ModelDir, "test_mock-model")
		require.NoError(t, os.MkdirAll(modelPath, 0750))
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel("test/mock-model", "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to use the sanitized model name")
	})
}
