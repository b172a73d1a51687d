package core

// ColumnDescriptor is a documented warehouse column as produced by the
// description pipeline and persisted in the knowledge store. Identity is
// QualifiedName ("table.column").
type ColumnDescriptor struct {
	QualifiedName string `json:"qualified_name"`
	Description   string `json:"description"`
	DataType      string `json:"data_type"`
	SchemaName    string `json:"schema_name"`
	Owner         string `json:"owner,omitempty"`
}

// DeltaResult is the outcome of reconciling candidate descriptors
// against the set of keys already persisted in the knowledge store.
type DeltaResult struct {
	// Missing holds candidates whose qualified name is absent from the
	// store, sorted by qualified name.
	Missing []ColumnDescriptor

	// AlreadyKnown holds the qualified names that were skipped because
	// the store already has them. Existing descriptions are never
	// overwritten by a resync.
	AlreadyKnown map[string]struct{}
}
