package core

import "fmt"

// RelationKind classifies a physical relation in the warehouse.
type RelationKind string

// Relation kind constants.
const (
	KindModel    RelationKind = "model"
	KindSeed     RelationKind = "seed"
	KindSnapshot RelationKind = "snapshot"
	KindSource   RelationKind = "source"
)

// IsPhysical reports whether nodes of this kind occupy warehouse storage.
// Source nodes are physical roots; everything else must also pass the
// pass-through (ephemeral) check during graph construction.
func (k RelationKind) IsPhysical() bool {
	switch k {
	case KindModel, KindSeed, KindSnapshot, KindSource:
		return true
	default:
		return false
	}
}

// PhysicalRelation is a warehouse relation materialized by the project:
// a table or view the generated SQL may reference. Identity is the
// manifest-assigned ID. Instances are created once per manifest parse
// and are immutable for the lifetime of a request.
type PhysicalRelation struct {
	ID              string       `json:"id"`
	Database        string       `json:"database,omitempty"`
	Schema          string       `json:"schema,omitempty"`
	Identifier      string       `json:"identifier"`
	Kind            RelationKind `json:"kind"`
	Materialization string       `json:"materialization,omitempty"`
}

// QualifiedName returns the schema-qualified relation name used in SQL.
func (r *PhysicalRelation) QualifiedName() string {
	if r.Schema == "" {
		return r.Identifier
	}
	return fmt.Sprintf("%s.%s", r.Schema, r.Identifier)
}

// FullyQualifiedName includes the database when one is set.
func (r *PhysicalRelation) FullyQualifiedName() string {
	if r.Database == "" {
		return r.QualifiedName()
	}
	return fmt.Sprintf("%s.%s", r.Database, r.QualifiedName())
}
