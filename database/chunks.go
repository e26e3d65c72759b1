package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	loadSql "github.com/siherrmann/wikigraph/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	SelectChunksByNode(ctx context.Context, nodeID string) ([]*model.Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	DeleteChunk(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, request model.SearchRequest) ([]*model.SearchHit, error)
}

// ChunksDBHandler handles chunk-related database operations
// and implements the document index searched by the orchestrator.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
// The nodes table has to exist because chunks reference their node.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the keyword and vector indexes.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk. A chunk without embedding is only
// found by keyword and filter searches.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk.Metadata == nil {
		chunk.Metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5)`,
		chunk.NodeID,
		chunk.Content,
		embeddingParam(chunk.Embedding),
		chunk.ChunkIndex,
		chunk.Metadata,
	)

	err := row.Scan(
		&chunk.ID,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", unavailable("document index", err))
	}

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select chunk", fmt.Errorf("chunk %s: %w", id, model.ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", unavailable("document index", err))
	}

	return chunk, nil
}

// SelectChunksByNode retrieves all chunks of a node ordered by chunk index
func (h *ChunksDBHandler) SelectChunksByNode(ctx context.Context, nodeID string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_node($1)`,
		nodeID,
	)
	if err != nil {
		return nil, helper.NewError("query", unavailable("document index", err))
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// UpdateChunkEmbedding replaces the embedding of a chunk
func (h *ChunksDBHandler) UpdateChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	var updated int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT update_chunk_embedding($1, $2)`,
		id,
		embeddingParam(embedding),
	).Scan(&updated)
	if err != nil {
		return helper.NewError("update chunk embedding", unavailable("document index", err))
	}
	if updated == 0 {
		return helper.NewError("update chunk embedding", fmt.Errorf("chunk %s: %w", id, model.ErrNotFound))
	}

	return nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", unavailable("document index", err))
	}
	return nil
}

// Search runs one ranked search against the document index.
// A request with a vector runs a similarity search, a request with text runs
// a keyword search and a request with neither but a filter returns the
// filtered nodes' chunks with score 1.0. The filter restricts candidates to
// nodes one hop away from the anchor over one of the given relation types.
func (h *ChunksDBHandler) Search(ctx context.Context, request model.SearchRequest) ([]*model.SearchHit, error) {
	if request.TopK < 1 {
		return nil, helper.NewError("search", fmt.Errorf("top k must be >= 1, got %d", request.TopK))
	}

	var anchorID interface{}
	relationTypes := []string{}
	if request.Filter != nil {
		anchorID = request.Filter.AnchorID
		for _, relationType := range request.Filter.RelationTypes {
			relationTypes = append(relationTypes, string(relationType))
		}
	}

	var rows *sql.Rows
	var err error
	switch {
	case request.Vector != nil:
		rows, err = h.db.Instance.QueryContext(
			ctx,
			`SELECT * FROM search_chunks_by_vector($1, $2, $3, $4)`,
			pgvector.NewVector(request.Vector),
			request.TopK,
			anchorID,
			pq.Array(relationTypes),
		)
	case request.IsFilterOnly():
		rows, err = h.db.Instance.QueryContext(
			ctx,
			`SELECT * FROM search_chunks_by_filter($1, $2, $3)`,
			request.TopK,
			anchorID,
			pq.Array(relationTypes),
		)
	default:
		rows, err = h.db.Instance.QueryContext(
			ctx,
			`SELECT * FROM search_chunks_by_keyword($1, $2, $3, $4)`,
			request.Text,
			request.TopK,
			anchorID,
			pq.Array(relationTypes),
		)
	}
	if err != nil {
		return nil, helper.NewError("search", unavailable("document index", err))
	}
	defer rows.Close()

	var hits []*model.SearchHit
	for rows.Next() {
		hit := &model.SearchHit{}
		err := rows.Scan(
			&hit.ChunkID,
			&hit.NodeID,
			&hit.ParentID,
			&hit.Title,
			&hit.Text,
			&hit.Score,
			&hit.HierarchyDepth,
			&hit.CentralityScore,
			&hit.ChildCount,
			&hit.RelatedCount,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", unavailable("document index", err))
	}

	return hits, nil
}

func embeddingParam(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	var embedding *pgvector.Vector
	err := row.Scan(
		&chunk.ID,
		&chunk.NodeID,
		&chunk.Content,
		&embedding,
		&chunk.ChunkIndex,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		chunk.Embedding = embedding.Slice()
	}
	return chunk, nil
}
