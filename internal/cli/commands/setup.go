package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/compass/internal/agent"
	"github.com/leapstack-labs/compass/internal/cli/config"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/llm"
	"github.com/leapstack-labs/compass/internal/manifest"
	"github.com/leapstack-labs/compass/internal/state"
	"github.com/leapstack-labs/compass/internal/tools"
	"github.com/leapstack-labs/compass/pkg/adapter"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command's context.
// Heavier dependencies (warehouse, model client, tool sources, state
// store) are built on demand by the helpers below, so commands only pay
// for what they use.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	manifestPath := getEnvOrDefault("COMPASS_MANIFEST_PATH", config.DefaultManifestPath)
	statePath := getEnvOrDefault("COMPASS_STATE_PATH", config.DefaultStateFile)
	verbose := os.Getenv("COMPASS_VERBOSE") == "true"
	outputFormat := os.Getenv("COMPASS_OUTPUT")

	cfg := &config.Config{
		ManifestPath: manifestPath,
		StatePath:    statePath,
		Verbose:      verbose,
		OutputFormat: outputFormat,
		Target:       &config.TargetConfig{Type: "duckdb"},
	}
	config.ApplyTargetDefaults(cfg.Target)
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadGraph parses the manifest and builds the physical lineage graph.
func loadGraph(cfg *config.Config, logger *slog.Logger) (*lineage.Graph, error) {
	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return lineage.Build(m, logger), nil
}

// connectAdapter opens a warehouse connection for the configured target.
// The returned cleanup must be called (typically via defer).
func connectAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, func(), error) {
	adapterCfg := core.AdapterConfigFrom(cfg.Target)
	adp, err := adapter.NewAdapter(adapterCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := adp.Connect(ctx, adapterCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s warehouse: %w", cfg.Target.Type, err)
	}
	cleanup := func() {
		_ = adp.Close()
	}
	return adp, cleanup, nil
}

// newModelClient builds the LLM client from config. The API key must be
// present; everything else has defaults.
func newModelClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm api_key is not set (set llm.api_key in compass.yaml or COMPASS_LLM__API_KEY)")
	}
	return llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		Logger:      logger,
	}), nil
}

// connectToolSource connects every configured MCP server and merges them
// behind one source. With no servers configured the loops run tool-less.
// The returned cleanup must be called (typically via defer).
func connectToolSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tools.Source, func(), error) {
	if len(cfg.Tools.Servers) == 0 {
		return tools.None(), func() {}, nil
	}

	sources := make([]tools.Source, 0, len(cfg.Tools.Servers))
	cleanup := func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}

	for _, serverCfg := range cfg.Tools.Servers {
		src := tools.NewMCPSource(serverCfg, logger)
		if err := src.Connect(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect tool server %q: %w", serverCfg.Name, err)
		}
		sources = append(sources, src)
	}

	var src tools.Source = tools.NewMulti(logger, sources...)
	src = tools.WithCallTimeout(src, cfg.Tools.CallTimeout)
	return src, cleanup, nil
}

// openStateStore opens the run-history database and applies migrations.
// The returned cleanup must be called (typically via defer).
func openStateStore(cfg *config.Config) (core.Store, func(), error) {
	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup, nil
}

// newReasoners builds the judge and generator loops. Both share one
// model client and one tool source; only their system prompts differ.
func newReasoners(cfg *config.Config, logger *slog.Logger, client llm.Client, source tools.Source) (judge, generator *agent.Loop, err error) {
	judge, err = agent.New(agent.Config{
		Client:      client,
		Source:      source,
		System:      judgeSystem,
		Temperature: cfg.LLM.Temperature,
		MaxTurns:    cfg.Expander.MaxTurns,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	generator, err = agent.New(agent.Config{
		Client:      client,
		Source:      source,
		System:      generatorSystem,
		Temperature: cfg.LLM.Temperature,
		MaxTurns:    cfg.Expander.MaxTurns,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return judge, generator, nil
}
