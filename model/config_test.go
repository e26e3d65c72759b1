package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, 3, config.HopBudget, "Default HopBudget should be 3")
		assert.Equal(t, 0.7, config.ConfidenceThreshold, "Default ConfidenceThreshold should be 0.7")
		assert.Equal(t, 10*time.Second, config.RequestTimeout, "Default RequestTimeout should be 10s")
		assert.Equal(t, 200*time.Millisecond, config.RetryBaseDelay, "Default RetryBaseDelay should be 200ms")
		assert.Equal(t, 5, config.MaxAncestorLevels, "Default MaxAncestorLevels should be 5")
		assert.Equal(t, 100, config.MetricsBatchSize, "Default MetricsBatchSize should be 100")
		assert.Equal(t, []RelationType{RelationParentOf, RelationLinksTo}, config.EdgeTypes)
		assert.Equal(t, BoostContinuous, config.BoostMode)
		assert.NoError(t, config.Validate(), "Default config should be valid")
	})

	t.Run("Centrality weights sum to 1.0", func(t *testing.T) {
		config := DefaultConfig()

		sum := config.InDegreeWeight + config.OutDegreeWeight + config.BetweennessWeight
		assert.InDelta(t, 1.0, sum, 0.001, "Default centrality weights should sum to 1.0")
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("Rejects zero hop budget", func(t *testing.T) {
		config := DefaultConfig()
		config.HopBudget = 0
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "hop_budget")
	})

	t.Run("Rejects more than two retries", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxRetries = 3
		assert.Error(t, config.Validate())
	})

	t.Run("Rejects unknown modes and edge types", func(t *testing.T) {
		config := DefaultConfig()
		config.BoostMode = "exponential"
		config.EdgeTypes = []RelationType{"SimilarTo"}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "boost_mode")
		assert.Contains(t, err.Error(), "SimilarTo")
	})

	t.Run("Rejects non positive conversation ttl", func(t *testing.T) {
		config := DefaultConfig()
		config.ConversationTTL = 0
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "conversation_ttl")
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("Loads yaml file on top of defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "hop_budget: 2\nboost_mode: discrete\nrequest_timeout: 5s\nedge_types: [LinksTo]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		config, err := LoadConfig(path)
		require.NoError(t, err, "Expected LoadConfig to not return an error")
		assert.Equal(t, 2, config.HopBudget)
		assert.Equal(t, BoostDiscrete, config.BoostMode)
		assert.Equal(t, 5*time.Second, config.RequestTimeout)
		assert.Equal(t, []RelationType{RelationLinksTo}, config.EdgeTypes)
		assert.Equal(t, 0.7, config.ConfidenceThreshold, "Expected untouched values to keep defaults")
	})

	t.Run("Environment overrides file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hop_budget: 2\n"), 0600))
		t.Setenv("MAX_HOPS", "4")
		t.Setenv("CONFIDENCE_THRESHOLD", "0.5")
		t.Setenv("GRAPH_METRICS_BATCH_SIZE", "50")

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 4, config.HopBudget)
		assert.Equal(t, 0.5, config.ConfidenceThreshold)
		assert.Equal(t, 50, config.MetricsBatchSize)
	})

	t.Run("Invalid environment value returns error", func(t *testing.T) {
		t.Setenv("MAX_HOPS", "three")

		_, err := LoadConfig("")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "MAX_HOPS")
	})

	t.Run("Missing file returns error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
