package commands

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/compass/internal/cli/config"
	"github.com/leapstack-labs/compass/internal/knowledge"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/manifest"
	"github.com/leapstack-labs/compass/pkg/adapter"
	"github.com/leapstack-labs/compass/pkg/core"
)

// loadAnnotations merges the column knowledge shown to the judge:
// descriptions from the knowledge table, overlaid with docs from any
// configured dbt properties files. Hand-written docs win over generated
// ones. Annotations are advisory, so every failure here degrades to
// fewer annotations rather than an error.
func loadAnnotations(ctx context.Context, adp adapter.Adapter, graph *lineage.Graph, cfg *config.Config, logger *slog.Logger) map[string][]core.ColumnDescriptor {
	annotations := catalogAnnotations(ctx, adp, cfg, logger)
	return overlaySchemaDocs(annotations, graph, cfg, logger)
}

// catalogAnnotations pulls known column descriptions from the knowledge
// table. A fresh warehouse without the table is normal; the judge just
// sees bare relation names then.
func catalogAnnotations(ctx context.Context, adp adapter.Adapter, cfg *config.Config, logger *slog.Logger) map[string][]core.ColumnDescriptor {
	catalog, err := knowledge.NewCatalog(knowledge.CatalogConfig{
		Adapter: adp,
		Schema:  cfg.Knowledge.Schema,
		Table:   cfg.Knowledge.Table,
		Logger:  logger,
	})
	if err != nil {
		return nil
	}
	byRelation, err := catalog.ByRelation(ctx)
	if err != nil {
		logger.Debug("no column knowledge available", "error", err)
		return nil
	}
	return byRelation
}

// overlaySchemaDocs folds dbt properties-file docs into the annotation
// map, matching docs to relations by manifest node name.
func overlaySchemaDocs(annotations map[string][]core.ColumnDescriptor, graph *lineage.Graph, cfg *config.Config, logger *slog.Logger) map[string][]core.ColumnDescriptor {
	if len(cfg.SchemaPaths) == 0 {
		return annotations
	}
	docs, err := manifest.LoadSchemaDocs(cfg.SchemaPaths, logger)
	if err != nil {
		logger.Warn("failed to load schema docs", "error", err)
		return annotations
	}
	if len(docs) == 0 {
		return annotations
	}

	if annotations == nil {
		annotations = make(map[string][]core.ColumnDescriptor)
	}
	merged := 0
	for _, id := range graph.RelationIDs() {
		cols, ok := docs[nodeNameOf(id)]
		if !ok {
			continue
		}
		rel, ok := graph.Relation(id)
		if !ok {
			continue
		}
		key := rel.QualifiedName()
		for _, col := range cols {
			annotations[key] = upsertDescriptor(annotations[key], core.ColumnDescriptor{
				QualifiedName: key + "." + col.Name,
				Description:   col.Description,
				DataType:      col.DataType,
				SchemaName:    rel.Schema,
			})
			merged++
		}
	}
	logger.Debug("schema docs merged", "columns", merged)
	return annotations
}

// nodeNameOf returns the trailing segment of a manifest id, which is
// the node name properties files refer to.
func nodeNameOf(id string) string {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

// upsertDescriptor replaces the description and type of an existing
// descriptor with the same key, or appends a new one.
func upsertDescriptor(cols []core.ColumnDescriptor, d core.ColumnDescriptor) []core.ColumnDescriptor {
	for i := range cols {
		if cols[i].QualifiedName != d.QualifiedName {
			continue
		}
		if d.Description != "" {
			cols[i].Description = d.Description
		}
		if d.DataType != "" {
			cols[i].DataType = d.DataType
		}
		return cols
	}
	return append(cols, d)
}
