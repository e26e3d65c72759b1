package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	loadSql "github.com/siherrmann/wikigraph/sql"
)

// RelationsDBHandlerFunctions defines the interface for Relations database operations.
type RelationsDBHandlerFunctions interface {
	InsertRelation(ctx context.Context, relation *model.Relation) error
	DeleteRelation(ctx context.Context, relation *model.Relation) error
	SelectRelationsFromNode(ctx context.Context, sourceID string, relationType *model.RelationType) ([]*model.Relation, error)
	SelectNeighborIDs(ctx context.Context, sourceID string, relationType model.RelationType) ([]string, error)
	SelectRelationsWithoutInverse(ctx context.Context) ([]*model.Relation, error)
}

// RelationsDBHandler handles typed relation database operations.
// Every relation is stored together with its inverse.
type RelationsDBHandler struct {
	db *helper.Database
}

// NewRelationsDBHandler creates a new relations database handler.
// It initializes the database connection and loads relation-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationsDBHandler(db *helper.Database, force bool) (*RelationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationsDbHandler := &RelationsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationsSql(relationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relations sql", err)
	}

	err = relationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationsDBHandler")

	return relationsDbHandler, nil
}

// CreateTable creates the 'relations' table in the database.
// If the table already exists, it does not create it again.
func (h *RelationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relations();`)
	if err != nil {
		log.Panicf("error initializing relations table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relations")

	return nil
}

// InsertRelation inserts a relation and its inverse.
// Inserting an existing relation is a no-op.
func (h *RelationsDBHandler) InsertRelation(ctx context.Context, relation *model.Relation) error {
	if !relation.Type.Valid() {
		return helper.NewError("insert relation", fmt.Errorf("unknown relation type: %s", relation.Type))
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_relation($1, $2, $3)`,
		relation.SourceID,
		relation.TargetID,
		string(relation.Type),
	)

	_, err := scanRelation(row, relation)
	if err != nil {
		return helper.NewError("scan", unavailable("graph store", err))
	}

	return nil
}

// DeleteRelation deletes a relation together with its inverse
func (h *RelationsDBHandler) DeleteRelation(ctx context.Context, relation *model.Relation) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_relation($1, $2, $3)`,
		relation.SourceID,
		relation.TargetID,
		string(relation.Type),
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("delete relation", unavailable("graph store", err))
	}
	if deleted == 0 {
		return helper.NewError("delete relation", fmt.Errorf("relation %s -%s-> %s: %w", relation.SourceID, relation.Type, relation.TargetID, model.ErrNotFound))
	}

	return nil
}

// SelectRelationsFromNode returns the outgoing relations of a node,
// restricted to relationType if it is not nil
func (h *RelationsDBHandler) SelectRelationsFromNode(ctx context.Context, sourceID string, relationType *model.RelationType) ([]*model.Relation, error) {
	var typeParam interface{}
	if relationType != nil {
		typeParam = string(*relationType)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_relations_from_node($1, $2)`,
		sourceID,
		typeParam,
	)
	if err != nil {
		return nil, helper.NewError("query", unavailable("graph store", err))
	}
	defer rows.Close()

	var relations []*model.Relation
	for rows.Next() {
		relation, err := scanRelation(rows, &model.Relation{})
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		relations = append(relations, relation)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return relations, nil
}

// SelectNeighborIDs returns the ids of all nodes reachable from sourceID
// over exactly one relation of relationType, ordered by id
func (h *RelationsDBHandler) SelectNeighborIDs(ctx context.Context, sourceID string, relationType model.RelationType) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_neighbor_ids($1, $2)`,
		sourceID,
		string(relationType),
	)
	if err != nil {
		return nil, helper.NewError("query", unavailable("graph store", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return ids, nil
}

// SelectRelationsWithoutInverse returns relations whose inverse is missing.
// The result is empty as long as every write went through InsertRelation.
func (h *RelationsDBHandler) SelectRelationsWithoutInverse(ctx context.Context) ([]*model.Relation, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_relations_without_inverse()`)
	if err != nil {
		return nil, helper.NewError("query", unavailable("graph store", err))
	}
	defer rows.Close()

	var relations []*model.Relation
	for rows.Next() {
		relation, err := scanRelation(rows, &model.Relation{})
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		relations = append(relations, relation)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return relations, nil
}

func scanRelation(row rowScanner, relation *model.Relation) (*model.Relation, error) {
	var relationType string
	err := row.Scan(
		&relation.SourceID,
		&relation.TargetID,
		&relationType,
		&relation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	relation.Type = model.RelationType(relationType)
	return relation, nil
}
