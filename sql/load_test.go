package sql

import (
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	db := initDB(t)

	t.Run("Initialize database extensions", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		var exists bool
		err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector');").Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "pgvector extension should be created")
	})

	t.Run("Initialize database extensions is idempotent", func(t *testing.T) {
		assert.NoError(t, Init(db.Instance))
		assert.NoError(t, Init(db.Instance))
	})
}

func TestLoadSql(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	groups := []struct {
		name      string
		load      func() error
		functions []string
	}{
		{"relations", func() error { return LoadRelationsSql(db.Instance, true) }, RelationsFunctions},
		{"nodes", func() error { return LoadNodesSql(db.Instance, true) }, NodesFunctions},
		{"chunks", func() error { return LoadChunksSql(db.Instance, true) }, ChunksFunctions},
	}

	for _, group := range groups {
		t.Run("Load "+group.name+" SQL functions", func(t *testing.T) {
			err := group.load()
			require.NoError(t, err)

			for _, funcName := range group.functions {
				var exists bool
				err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);", funcName).Scan(&exists)
				require.NoError(t, err)
				assert.True(t, exists, "Function %s should exist", funcName)
			}
		})
	}

	t.Run("Loading without force skips existing functions", func(t *testing.T) {
		assert.NoError(t, LoadAllSql(db.Instance, false))
	})

	t.Run("relation_inverse maps every type back", func(t *testing.T) {
		var inverse string
		err := db.Instance.QueryRow("SELECT relation_inverse('LinksTo');").Scan(&inverse)
		require.NoError(t, err)
		assert.Equal(t, "LinkedFrom", inverse)

		var unknown *string
		err = db.Instance.QueryRow("SELECT relation_inverse('SimilarTo');").Scan(&unknown)
		require.NoError(t, err)
		assert.Nil(t, unknown, "Expected NULL for unknown relation type")
	})
}
