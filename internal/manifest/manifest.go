// Package manifest parses dbt-compatible dependency manifests.
//
// A manifest describes every node the transformation project knows about
// (models, seeds, snapshots, tests, ...) together with its declared
// dependencies, plus a parallel map of source definitions that act as
// graph roots. Compass consumes only the structural subset: resource
// type, naming, dependency ids, and the materialization/enabled config.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Manifest is the parsed dependency manifest.
type Manifest struct {
	Nodes   map[string]Node   `json:"nodes"`
	Sources map[string]Source `json:"sources"`
}

// Node is a single manifest entry keyed by its manifest id.
type Node struct {
	ResourceType string      `json:"resource_type"`
	Name         string      `json:"name"`
	Alias        string      `json:"alias,omitempty"`
	Database     string      `json:"database,omitempty"`
	Schema       string      `json:"schema,omitempty"`
	DependsOn    DependsOn   `json:"depends_on"`
	Config       *NodeConfig `json:"config,omitempty"`
}

// DependsOn lists the raw dependency ids a node declares.
type DependsOn struct {
	Nodes []string `json:"nodes"`
}

// NodeConfig carries the structural configuration compass cares about.
type NodeConfig struct {
	Materialized string `json:"materialized,omitempty"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

// Source is a root relation defined outside the project.
type Source struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier,omitempty"`
	Database   string `json:"database,omitempty"`
	Schema     string `json:"schema,omitempty"`
}

// IsEphemeral reports whether the node is a pass-through relation with
// no independent storage. Ephemeral nodes never become graph members;
// their dependencies are inherited by their consumers.
func (n Node) IsEphemeral() bool {
	return n.Config != nil && n.Config.Materialized == "ephemeral"
}

// IsEnabled reports whether the node participates in the project.
// Absent config means enabled.
func (n Node) IsEnabled() bool {
	if n.Config == nil || n.Config.Enabled == nil {
		return true
	}
	return *n.Config.Enabled
}

// TableName returns the warehouse identifier for the node: the alias if
// one is set, otherwise the node name.
func (n Node) TableName() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// TableName returns the warehouse identifier for the source.
func (s Source) TableName() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.Name
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes a manifest from a reader.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.Nodes == nil {
		m.Nodes = map[string]Node{}
	}
	if m.Sources == nil {
		m.Sources = map[string]Source{}
	}

	return &m, nil
}
