// Package config provides configuration management for the compass CLI.
//
// Configuration is layered with koanf: built-in defaults, then
// compass.yaml, then COMPASS_-prefixed environment variables, then
// explicitly-set command-line flags. The warehouse target type is shared
// with pkg/core so adapters and the CLI agree on its shape.
package config

import (
	"time"

	"github.com/leapstack-labs/compass/internal/tools"
	"github.com/leapstack-labs/compass/pkg/core"
)

// TargetConfig is an alias for the shared warehouse target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// LLMConfig holds model endpoint settings.
type LLMConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
}

// ToolsConfig holds tool registry settings.
type ToolsConfig struct {
	// Servers lists MCP servers to connect to. Each entry is either a
	// stdio subprocess (command + args) or a streamable HTTP endpoint.
	Servers []tools.MCPConfig `koanf:"servers"`

	// CallTimeout bounds each individual tool invocation, separate from
	// any overall run timeout.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// ExpanderConfig holds scope-expansion loop settings.
type ExpanderConfig struct {
	MaxIterations int `koanf:"max_iterations"`

	// MaxTurns caps model round-trips inside each agent loop run.
	// Zero means unbounded.
	MaxTurns int `koanf:"max_turns"`
}

// KnowledgeConfig locates the column-knowledge table in the warehouse.
type KnowledgeConfig struct {
	Schema string `koanf:"schema"`
	Table  string `koanf:"table"`
}

// ServerConfig holds HTTP server settings for compass serve.
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	ManifestPath string `koanf:"manifest_path"`

	// SchemaPaths lists dbt properties files or directories to scan
	// for column documentation. The docs are handed to the judge as
	// annotations alongside whatever the knowledge table holds.
	SchemaPaths []string `koanf:"schema_paths"`

	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Target    *TargetConfig   `koanf:"target"`
	LLM       LLMConfig       `koanf:"llm"`
	Tools     ToolsConfig     `koanf:"tools"`
	Expander  ExpanderConfig  `koanf:"expander"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Server    ServerConfig    `koanf:"server"`

	// ProjectRoot anchors relative path resolution. Derived at load
	// time, never read from the file itself.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultManifestPath = "target/manifest.json"
	DefaultStateFile    = ".compass/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultServerPort   = 8787
	DefaultCallTimeout  = time.Minute
)
