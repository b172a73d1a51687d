// Package knowledge persists column descriptors in a warehouse-resident
// catalog table and reconciles fresh candidates against it.
//
// The catalog is additive: a resync inserts only descriptors whose
// qualified name is not yet stored, so reviewed descriptions survive
// re-runs. The skeleton (schema plus table) is created lazily on the
// first sync against a fresh warehouse.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/compass/internal/delta"
	"github.com/leapstack-labs/compass/pkg/core"
)

const (
	// DefaultSchema is the schema holding compass-owned tables.
	DefaultSchema = "compass"

	// DefaultTable is the column-knowledge catalog table.
	DefaultTable = "column_knowledge"
)

// Catalog reads and writes the column-knowledge table through a
// warehouse adapter.
type Catalog struct {
	adapter core.Adapter
	schema  string
	table   string
	logger  *slog.Logger
}

// CatalogConfig configures a Catalog. Zero values fall back to the
// compass defaults.
type CatalogConfig struct {
	Adapter core.Adapter
	Schema  string
	Table   string
	Logger  *slog.Logger
}

// NewCatalog builds a catalog over a connected adapter.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("catalog requires an adapter")
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		adapter: cfg.Adapter,
		schema:  cfg.Schema,
		table:   cfg.Table,
		logger:  cfg.Logger,
	}, nil
}

// QualifiedTable returns the schema-qualified catalog table name.
func (c *Catalog) QualifiedTable() string {
	return c.schema + "." + c.table
}

// EnsureSkeleton creates the catalog schema and table when absent.
func (c *Catalog) EnsureSkeleton(ctx context.Context) error {
	if err := c.adapter.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+c.schema); err != nil {
		return fmt.Errorf("failed to create knowledge schema: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		qualified_name VARCHAR PRIMARY KEY,
		description    VARCHAR,
		data_type      VARCHAR,
		schema_name    VARCHAR,
		owner          VARCHAR
	)`, c.QualifiedTable())
	if err := c.adapter.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create knowledge table: %w", err)
	}

	c.logger.Debug("knowledge skeleton ensured", slog.String("table", c.QualifiedTable()))
	return nil
}

// ExistingKeys returns the qualified names already persisted.
func (c *Catalog) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := c.adapter.Query(ctx, "SELECT qualified_name FROM "+c.QualifiedTable())
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge keys: %w", err)
	}
	return keys, nil
}

// Merge appends the given descriptors in one multi-row INSERT. Callers
// pass only rows known to be missing; Merge never updates in place.
func (c *Catalog) Merge(ctx context.Context, rows []core.ColumnDescriptor) error {
	if len(rows) == 0 {
		return nil
	}
	d := c.adapter.DialectConfig()

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (qualified_name, description, data_type, schema_name, owner) VALUES ", c.QualifiedTable())
	args := make([]any, 0, len(rows)*5)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < 5; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.FormatPlaceholder(i*5 + j + 1))
		}
		b.WriteString(")")
		args = append(args, row.QualifiedName, row.Description, row.DataType, row.SchemaName, row.Owner)
	}

	if err := c.adapter.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to merge %d knowledge rows: %w", len(rows), err)
	}
	c.logger.Info("knowledge rows merged",
		slog.Int("rows", len(rows)),
		slog.String("table", c.QualifiedTable()))
	return nil
}

// Sync reconciles candidates against the store and persists the missing
// ones. A fresh warehouse gets the skeleton created on first use.
func (c *Catalog) Sync(ctx context.Context, candidates []core.ColumnDescriptor) (*core.DeltaResult, error) {
	existing, err := c.ExistingKeys(ctx)
	if err != nil {
		// Probably a fresh warehouse without the skeleton. Create it
		// and retry so real connectivity errors still surface.
		c.logger.Debug("knowledge keys unreadable, ensuring skeleton", slog.Any("error", err))
		if skelErr := c.EnsureSkeleton(ctx); skelErr != nil {
			return nil, skelErr
		}
		if existing, err = c.ExistingKeys(ctx); err != nil {
			return nil, err
		}
	}

	result := delta.Reconcile(existing, candidates)
	if len(result.Missing) == 0 {
		return &result, nil
	}
	if err := c.Merge(ctx, result.Missing); err != nil {
		return nil, err
	}
	return &result, nil
}

// ByRelation loads all stored descriptors grouped by relation name (the
// descriptor key minus its trailing column segment).
func (c *Catalog) ByRelation(ctx context.Context) (map[string][]core.ColumnDescriptor, error) {
	query := fmt.Sprintf("SELECT qualified_name, description, data_type, schema_name, owner FROM %s ORDER BY qualified_name", c.QualifiedTable())
	rows, err := c.adapter.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grouped := make(map[string][]core.ColumnDescriptor)
	for rows.Next() {
		var d core.ColumnDescriptor
		if err := rows.Scan(&d.QualifiedName, &d.Description, &d.DataType, &d.SchemaName, &d.Owner); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge row: %w", err)
		}
		rel := relationOf(d.QualifiedName)
		grouped[rel] = append(grouped[rel], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge rows: %w", err)
	}
	return grouped, nil
}

// relationOf strips the trailing column segment from a descriptor key:
// "analytics.orders.total" becomes "analytics.orders". Keys without a
// separator are returned unchanged.
func relationOf(qualifiedName string) string {
	idx := strings.LastIndex(qualifiedName, ".")
	if idx <= 0 {
		return qualifiedName
	}
	return qualifiedName[:idx]
}
