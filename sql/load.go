package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed init.sql
var initSQL string

//go:embed nodes.sql
var nodesSQL string

//go:embed relations.sql
var relationsSQL string

//go:embed chunks.sql
var chunksSQL string

// Functions each SQL group must define
var NodesFunctions = []string{
	"init_nodes",
	"upsert_node",
	"select_node",
	"select_nodes",
	"select_node_version",
	"update_node_metrics",
	"delete_node",
}

var RelationsFunctions = []string{
	"init_relations",
	"relation_inverse",
	"insert_relation",
	"delete_relation",
	"select_relations_from_node",
	"select_neighbor_ids",
	"select_relations_without_inverse",
}

var ChunksFunctions = []string{
	"init_chunks",
	"insert_chunk",
	"select_chunk",
	"select_chunks_by_node",
	"update_chunk_embedding",
	"delete_chunk",
	"search_chunks_by_vector",
	"search_chunks_by_keyword",
	"search_chunks_by_filter",
}

// Init creates the extensions the schema depends on
func Init(db *sql.DB) error {
	if _, err := db.Exec(initSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	slog.Debug("Database extensions ready")
	return nil
}

// LoadNodesSql loads node-related SQL functions
func LoadNodesSql(db *sql.DB, force bool) error {
	return loadGroup(db, sqlGroup{"nodes", nodesSQL, NodesFunctions}, force)
}

// LoadRelationsSql loads relation-related SQL functions
func LoadRelationsSql(db *sql.DB, force bool) error {
	return loadGroup(db, sqlGroup{"relations", relationsSQL, RelationsFunctions}, force)
}

// LoadChunksSql loads chunk and search SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	return loadGroup(db, sqlGroup{"chunks", chunksSQL, ChunksFunctions}, force)
}

// LoadAllSql loads every function group. Relations come first since node
// upserts maintain hierarchy relations.
func LoadAllSql(db *sql.DB, force bool) error {
	for _, load := range []func(*sql.DB, bool) error{LoadRelationsSql, LoadNodesSql, LoadChunksSql} {
		if err := load(db, force); err != nil {
			return err
		}
	}
	return nil
}

type sqlGroup struct {
	name      string
	content   string
	functions []string
}

func loadGroup(db *sql.DB, group sqlGroup, force bool) error {
	if !force {
		missing, err := missingFunction(db, group.functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", group.name, err)
		}
		if missing == "" {
			return nil
		}
		slog.Debug("SQL function missing, reloading group", slog.String("group", group.name), slog.String("function", missing))
	}

	if _, err := db.Exec(group.content); err != nil {
		return fmt.Errorf("error executing %s SQL: %w", group.name, err)
	}

	missing, err := missingFunction(db, group.functions)
	if err != nil {
		return fmt.Errorf("error verifying %s functions: %w", group.name, err)
	}
	if missing != "" {
		return fmt.Errorf("%s SQL did not create function %s", group.name, missing)
	}

	slog.Debug("SQL functions loaded", slog.String("group", group.name))
	return nil
}

// missingFunction returns the first function not present in pg_proc, or an empty string
func missingFunction(db *sql.DB, functions []string) (string, error) {
	for _, name := range functions {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`, name).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("error checking existence of function %s: %w", name, err)
		}
		if !exists {
			return name, nil
		}
	}
	return "", nil
}
