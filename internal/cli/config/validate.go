package config

import (
	"fmt"
	"os"
)

// DefaultSchemaForType returns the default schema for a warehouse type.
func DefaultSchemaForType(dbType string) string {
	switch dbType {
	case "postgres":
		return "public"
	default:
		return "main"
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	if t.Type == "postgres" {
		if t.Port == 0 {
			t.Port = 5432
		}
	}
}

// ValidateTarget checks that a target carries enough to connect.
// Unknown adapter types are rejected later by the adapter registry,
// which knows what is actually compiled in.
func ValidateTarget(t *TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if t.Type == "postgres" {
		if t.Host == "" {
			return fmt.Errorf("postgres target requires a host")
		}
		if t.Database == "" {
			return fmt.Errorf("postgres target requires a database")
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ManifestPath == "" {
		return fmt.Errorf("manifest_path is required")
	}

	// Only validate file existence if we're running a command that needs it
	// This allows help commands to work without a manifest present
	return nil
}

// ValidateManifest checks that the manifest file exists.
func (c *Config) ValidateManifest() error {
	if _, err := os.Stat(c.ManifestPath); os.IsNotExist(err) {
		return fmt.Errorf("manifest file does not exist: %s\nHint: Run your dbt build first or use --manifest to point at a manifest.json", c.ManifestPath)
	}
	return nil
}
