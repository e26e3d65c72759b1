package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/wikigraph/helper"
)

// VectorIndexType is the approximate nearest neighbour index of chunk embeddings
type VectorIndexType string

const (
	VectorIndexHNSW    VectorIndexType = "hnsw"
	VectorIndexIVFFlat VectorIndexType = "ivfflat"
)

// VectorIndexOptions configures the chunk embedding index.
// Zero values use the pgvector defaults.
type VectorIndexOptions struct {
	Type           VectorIndexType
	M              int // hnsw, default 16
	EfConstruction int // hnsw, default 64
	Lists          int // ivfflat, default 100
}

func (o VectorIndexOptions) createSQL() (string, error) {
	switch o.Type {
	case VectorIndexHNSW:
		m, ef := o.M, o.EfConstruction
		if m < 1 {
			m = 16
		}
		if ef < 1 {
			ef = 64
		}
		if ef < 2*m {
			return "", fmt.Errorf("ef_construction must be at least 2*m, got m=%d ef_construction=%d", m, ef)
		}
		return fmt.Sprintf(`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`, m, ef), nil
	case VectorIndexIVFFlat:
		lists := o.Lists
		if lists < 1 {
			lists = 100
		}
		return fmt.Sprintf(`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`, lists), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", o.Type)
	}
}

// RebuildVectorIndex replaces the chunk embedding index in one transaction,
// so concurrent searches keep using the old index until the new one is committed.
func (h *ChunksDBHandler) RebuildVectorIndex(ctx context.Context, opts VectorIndexOptions) error {
	createIndexSQL, err := opts.createSQL()
	if err != nil {
		return helper.NewError("rebuild vector index", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`); err != nil {
		return helper.NewError("drop index", err)
	}
	if _, err := tx.ExecContext(ctx, createIndexSQL); err != nil {
		return helper.NewError("create index", err)
	}
	if err := tx.Commit(); err != nil {
		return helper.NewError("commit index", err)
	}

	h.db.Logger.Info("Rebuilt vector index",
		slog.String("type", string(opts.Type)),
		slog.Int("m", opts.M),
		slog.Int("ef_construction", opts.EfConstruction),
		slog.Int("lists", opts.Lists),
	)
	return nil
}
