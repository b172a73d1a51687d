package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/spf13/cobra"
)

const configTemplate = `# Compass configuration
# Relative paths are resolved against this file's directory.

# Manifest produced by your dbt project ("dbt compile" or "dbt build").
manifest_path: target/manifest.json

# Properties files with column docs, fed to the judge as annotations.
# Directories are scanned for .yml/.yaml files.
# schema_paths:
#   - models/

# Run history database.
state_path: .compass/state.db

# Warehouse connection.
target:
  type: duckdb
  path: warehouse.duckdb
  # type: postgres
  # host: localhost
  # port: 5432
  # database: analytics
  # user: compass
  # password: ${COMPASS_DB_PASSWORD}

llm:
  # Reads ${ANTHROPIC_API_KEY} from the environment.
  api_key: ${ANTHROPIC_API_KEY}
  model: claude-sonnet-4-5
  max_tokens: 8192
  temperature: 0.1
  timeout: 5m

expander:
  max_iterations: 5

knowledge:
  schema: compass
  table: column_knowledge

server:
  port: 8787
  watch: true

# Tool servers offered to the model during reasoning.
# tools:
#   call_timeout: 1m
#   servers:
#     - name: warehouse-docs
#       command: docs-server
#       args: ["--stdio"]
#     - name: metrics
#       url: http://localhost:9400/mcp
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a Compass project",
		Long: `Write a commented compass.yaml and create the state directory.

Run this next to your dbt project so the default manifest path
(target/manifest.json) resolves without editing.`,
		Example: `  # Initialize in the current directory
  compass init

  # Initialize in a new directory
  compass init my-warehouse

  # Overwrite an existing compass.yaml
  compass init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "compass.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("compass.yaml already exists. Use --force to overwrite")
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.StatusLine("compass.yaml", "success", "")

	stateDir := filepath.Join(dir, ".compass")
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", stateDir, err)
	}
	r.StatusLine(".compass/", "success", "")

	r.Println("")
	r.Success("Compass project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Point manifest_path at your dbt manifest")
	r.Println("  2. Fill in the warehouse target and export ANTHROPIC_API_KEY")
	r.Println("  3. Run 'compass doctor' to verify the setup")
	r.Println("  4. Run 'compass ask \"your question\"'")

	return nil
}
