package manifest

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnDoc is one documented column from a dbt properties file.
type ColumnDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataType    string `yaml:"data_type"`
}

// propertiesFile is the structural subset of a dbt properties file.
// Anything beyond names and column docs (tests, meta, freshness) is
// ignored.
type propertiesFile struct {
	Version int               `yaml:"version"`
	Models  []propertiesEntry `yaml:"models"`
	Seeds   []propertiesEntry `yaml:"seeds"`
	Sources []struct {
		Name   string            `yaml:"name"`
		Tables []propertiesEntry `yaml:"tables"`
	} `yaml:"sources"`
}

type propertiesEntry struct {
	Name    string      `yaml:"name"`
	Columns []ColumnDoc `yaml:"columns"`
}

// ParseSchema decodes one dbt properties file and returns its column
// docs keyed by model, seed, or source table name. Entries without
// documented columns are dropped.
func ParseSchema(r io.Reader) (map[string][]ColumnDoc, error) {
	var pf propertiesFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse properties file: %w", err)
	}

	docs := make(map[string][]ColumnDoc)
	collect := func(entries []propertiesEntry) {
		for _, e := range entries {
			if e.Name == "" || len(e.Columns) == 0 {
				continue
			}
			docs[e.Name] = append(docs[e.Name], e.Columns...)
		}
	}
	collect(pf.Models)
	collect(pf.Seeds)
	for _, src := range pf.Sources {
		collect(src.Tables)
	}
	return docs, nil
}

// LoadSchemaDocs gathers column docs from the given paths. Each path is
// a properties file or a directory walked for .yml/.yaml files. Files
// that do not parse as version-2 properties files are skipped, so a
// models directory can be passed wholesale.
func LoadSchemaDocs(paths []string, logger *slog.Logger) (map[string][]ColumnDoc, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	docs := make(map[string][]ColumnDoc)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("schema path %s: %w", path, err)
		}
		if !info.IsDir() {
			if err := mergeSchemaFile(docs, path, logger); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isYAMLFile(p) {
				return nil
			}
			return mergeSchemaFile(docs, p, logger)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk schema path %s: %w", path, err)
		}
	}
	return docs, nil
}

func mergeSchemaFile(docs map[string][]ColumnDoc, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open properties file: %w", err)
	}
	defer func() { _ = f.Close() }()

	parsed, err := ParseSchema(f)
	if err != nil {
		// Not every YAML file in a models directory is a properties
		// file.
		logger.Debug("skipping non-properties yaml", "path", path, "error", err)
		return nil
	}
	for name, cols := range parsed {
		docs[name] = append(docs[name], cols...)
	}
	if len(parsed) > 0 {
		logger.Debug("column docs loaded", "path", path, "relations", len(parsed))
	}
	return nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
