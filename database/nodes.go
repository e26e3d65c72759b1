package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	loadSql "github.com/siherrmann/wikigraph/sql"
)

// NodesDBHandlerFunctions defines the interface for Nodes database operations.
type NodesDBHandlerFunctions interface {
	UpsertNode(ctx context.Context, node *model.DocumentNode) error
	SelectNode(ctx context.Context, id string) (*model.DocumentNode, error)
	SelectNodes(ctx context.Context, spaceID *string) ([]*model.DocumentNode, error)
	SelectNodeVersion(ctx context.Context, id string) (int64, error)
	UpdateNodeMetrics(ctx context.Context, id string, expectedVersion int64, metrics model.NodeMetrics) (int64, error)
	DeleteNode(ctx context.Context, id string) error
}

// NodesDBHandler handles document node database operations
type NodesDBHandler struct {
	db *helper.Database
}

// NewNodesDBHandler creates a new nodes database handler.
// It initializes the database connection and loads node-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewNodesDBHandler(db *helper.Database, force bool) (*NodesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	nodesDbHandler := &NodesDBHandler{
		db: db,
	}

	err := loadSql.LoadNodesSql(nodesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load nodes sql", err)
	}

	err = nodesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized NodesDBHandler")

	return nodesDbHandler, nil
}

// CreateTable creates the 'nodes' table in the database.
// If the table already exists, it does not create it again.
func (h *NodesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_nodes();`)
	if err != nil {
		log.Panicf("error initializing nodes table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table nodes")

	return nil
}

// UpsertNode inserts or replaces a node. The parent and space relation
// pairs are maintained by the database function and the version is bumped.
func (h *NodesDBHandler) UpsertNode(ctx context.Context, node *model.DocumentNode) error {
	if node.Metadata == nil {
		node.Metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_node($1, $2, $3, $4, $5, $6)`,
		node.ID,
		node.ParentID,
		node.SpaceID,
		node.Title,
		node.Text,
		node.Metadata,
	)

	err := row.Scan(
		&node.Version,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", unavailable("graph store", err))
	}

	return nil
}

// SelectNode retrieves a node by ID
func (h *NodesDBHandler) SelectNode(ctx context.Context, id string) (*model.DocumentNode, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_node($1)`,
		id,
	)

	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select node", fmt.Errorf("node %s: %w", id, model.ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", unavailable("graph store", err))
	}

	return node, nil
}

// SelectNodes retrieves all nodes of a space, or all nodes if spaceID is nil
func (h *NodesDBHandler) SelectNodes(ctx context.Context, spaceID *string) ([]*model.DocumentNode, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_nodes($1)`,
		spaceID,
	)
	if err != nil {
		return nil, helper.NewError("query", unavailable("graph store", err))
	}
	defer rows.Close()

	var nodes []*model.DocumentNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return nodes, nil
}

// SelectNodeVersion returns the current version of a node
func (h *NodesDBHandler) SelectNodeVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_node_version($1)`,
		id,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, helper.NewError("select node version", fmt.Errorf("node %s: %w", id, model.ErrNotFound))
	}
	if err != nil {
		return 0, helper.NewError("scan", unavailable("graph store", err))
	}

	return version, nil
}

// UpdateNodeMetrics writes the metrics of a node if its version still equals
// expectedVersion and returns the new version. It returns model.ErrVersionConflict
// if the node changed underneath and model.ErrNotFound if it was deleted.
func (h *NodesDBHandler) UpdateNodeMetrics(ctx context.Context, id string, expectedVersion int64, metrics model.NodeMetrics) (int64, error) {
	var version int64
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_node_metrics($1, $2, $3, $4, $5, $6, $7)`,
		id,
		expectedVersion,
		metrics.HierarchyDepth,
		metrics.ChildCount,
		metrics.SiblingCount,
		metrics.RelatedCount,
		metrics.CentralityScore,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a lost race from a deleted node
		if _, versionErr := h.SelectNodeVersion(ctx, id); versionErr != nil {
			return 0, versionErr
		}
		return 0, model.ErrVersionConflict
	}
	if err != nil {
		return 0, helper.NewError("update node metrics", unavailable("graph store", err))
	}

	return version, nil
}

// DeleteNode deletes a node with all its relations and chunks
func (h *NodesDBHandler) DeleteNode(ctx context.Context, id string) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_node($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("delete node", unavailable("graph store", err))
	}
	if deleted == 0 {
		return helper.NewError("delete node", fmt.Errorf("node %s: %w", id, model.ErrNotFound))
	}

	return nil
}

// SelectAncestor returns the parent of a node as a breadcrumb entry.
// ok is false for roots and for dangling parent references.
func (h *NodesDBHandler) SelectAncestor(ctx context.Context, id string) (parent model.Breadcrumb, ok bool, err error) {
	node, err := h.SelectNode(ctx, id)
	if err != nil {
		return model.Breadcrumb{}, false, err
	}
	if node.IsRoot() {
		return model.Breadcrumb{}, false, nil
	}

	parentNode, err := h.SelectNode(ctx, node.Parent())
	if errors.Is(err, model.ErrNotFound) {
		return model.Breadcrumb{}, false, nil
	}
	if err != nil {
		return model.Breadcrumb{}, false, err
	}

	return model.Breadcrumb{
		NodeID: parentNode.ID,
		Title:  parentNode.Title,
		Depth:  parentNode.HierarchyDepth,
	}, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*model.DocumentNode, error) {
	node := &model.DocumentNode{}
	err := row.Scan(
		&node.ID,
		&node.ParentID,
		&node.SpaceID,
		&node.Title,
		&node.Text,
		&node.HierarchyDepth,
		&node.ChildCount,
		&node.SiblingCount,
		&node.RelatedCount,
		&node.CentralityScore,
		&node.Version,
		&node.Metadata,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return node, nil
}
