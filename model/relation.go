package model

import (
	"fmt"
	"time"
)

// RelationType represents the type of a directed relation between nodes
type RelationType string

const (
	RelationParentOf   RelationType = "ParentOf"
	RelationChildOf    RelationType = "ChildOf"
	RelationLinksTo    RelationType = "LinksTo"
	RelationLinkedFrom RelationType = "LinkedFrom"
	RelationBelongsTo  RelationType = "BelongsTo"
	RelationContains   RelationType = "Contains"
	// Feedback relations between question hashes
	RelationDependsOn  RelationType = "DependsOn"
	RelationRequiredBy RelationType = "RequiredBy"
)

var inverseRelations = map[RelationType]RelationType{
	RelationParentOf:   RelationChildOf,
	RelationChildOf:    RelationParentOf,
	RelationLinksTo:    RelationLinkedFrom,
	RelationLinkedFrom: RelationLinksTo,
	RelationBelongsTo:  RelationContains,
	RelationContains:   RelationBelongsTo,
	RelationDependsOn:  RelationRequiredBy,
	RelationRequiredBy: RelationDependsOn,
}

// AllRelationTypes returns every known relation type
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationParentOf, RelationChildOf,
		RelationLinksTo, RelationLinkedFrom,
		RelationBelongsTo, RelationContains,
		RelationDependsOn, RelationRequiredBy,
	}
}

// Inverse returns the required inverse of the relation type
func (r RelationType) Inverse() (RelationType, error) {
	inverse, ok := inverseRelations[r]
	if !ok {
		return "", fmt.Errorf("unknown relation type: %s", r)
	}
	return inverse, nil
}

// Valid reports whether the relation type is known
func (r RelationType) Valid() bool {
	_, ok := inverseRelations[r]
	return ok
}

// ParseRelationType parses a relation type name
func ParseRelationType(s string) (RelationType, error) {
	r := RelationType(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown relation type: %s", s)
	}
	return r, nil
}

// Relation represents a typed, directed edge between two nodes
type Relation struct {
	SourceID  string       `json:"source_id"`
	TargetID  string       `json:"target_id"`
	Type      RelationType `json:"relation_type"`
	CreatedAt time.Time    `json:"created_at"`
}

// Inverse returns the inverse edge of the relation
func (r *Relation) Inverse() (*Relation, error) {
	inverseType, err := r.Type.Inverse()
	if err != nil {
		return nil, err
	}
	return &Relation{
		SourceID:  r.TargetID,
		TargetID:  r.SourceID,
		Type:      inverseType,
		CreatedAt: r.CreatedAt,
	}, nil
}
