package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/compass/internal/cli/config"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/knowledge"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that compass can reach everything it needs",
		Long: `Probe every dependency compass relies on and report what works.

The doctor command checks:
- Configuration (compass.yaml found, manifest present)
- Lineage (manifest parses, graph builds, cycle count)
- Warehouse (connection and probe query)
- Model endpoint (API key configured)
- Run history database
- Tool servers

Each failing check comes with a recommendation. A setup that passes
doctor is a setup where 'compass ask' will run.`,
		Example: `  # Run health check
  compass doctor

  # Output as JSON
  compass doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         LineageSummary `json:"summary"`
	Checks          []HealthCheck  `json:"checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// LineageSummary contains graph-level statistics, zeroed when the
// manifest could not be loaded.
type LineageSummary struct {
	Relations int `json:"relations"`
	Edges     int `json:"edges"`
	MaxDepth  int `json:"max_depth"`
	Cycles    int `json:"cycles"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := buildDoctorOutput(cmd.Context(), cmdCtx)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func buildDoctorOutput(ctx context.Context, cmdCtx *CommandContext) *DoctorOutput {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	var checks []HealthCheck
	var summary LineageSummary

	// Configuration
	if path := config.GetConfigFileUsed(); path != "" {
		checks = append(checks, passCheck("config", "Config file", "configuration", path))
	} else {
		checks = append(checks, warnCheck("config", "Config file", "configuration",
			"no compass.yaml found; running on defaults"))
	}

	manifestOK := false
	if err := cfg.ValidateManifest(); err != nil {
		checks = append(checks, errorCheck("manifest", "Manifest", "configuration",
			fmt.Sprintf("not found at %s", cfg.ManifestPath)))
	} else {
		manifestOK = true
		checks = append(checks, passCheck("manifest", "Manifest", "configuration", cfg.ManifestPath))
	}

	// Lineage
	if manifestOK {
		g, err := loadGraph(cfg, logger)
		if err != nil {
			checks = append(checks, errorCheck("graph", "Lineage graph", "lineage", err.Error()))
		} else {
			depths := g.Depths()
			summary = LineageSummary{
				Relations: g.RelationCount(),
				Edges:     g.EdgeCount(),
				MaxDepth:  depths.MaxDepth(),
				Cycles:    len(depths.Cyclic),
			}
			checks = append(checks, passCheck("graph", "Lineage graph", "lineage",
				fmt.Sprintf("%d relations, %d edges, max depth %d", summary.Relations, summary.Edges, summary.MaxDepth)))

			if len(depths.Cyclic) > 0 {
				details := make([]string, 0, len(depths.Cyclic))
				for id := range depths.Cyclic {
					details = append(details, id)
				}
				sort.Strings(details)
				checks = append(checks, HealthCheck{
					ID: "cycles", Name: "Dependency cycles", Group: "lineage",
					Status: "warn", Details: details,
				})
			} else {
				checks = append(checks, passCheck("cycles", "Dependency cycles", "lineage", "none"))
			}
		}
	}

	// Warehouse
	adp, cleanup, err := connectAdapter(ctx, cfg, logger)
	if err != nil {
		checks = append(checks, errorCheck("warehouse", "Warehouse connection", "warehouse", err.Error()))
	} else {
		if rows, qerr := adp.Query(ctx, "SELECT 1"); qerr != nil {
			checks = append(checks, errorCheck("warehouse", "Warehouse connection", "warehouse",
				fmt.Sprintf("probe query failed: %v", qerr)))
		} else {
			rows.Close()
			checks = append(checks, passCheck("warehouse", "Warehouse connection", "warehouse", cfg.Target.Type))
		}

		// The knowledge table is created lazily by sync, so absence is
		// expected on a fresh warehouse.
		catalog, cerr := knowledge.NewCatalog(knowledge.CatalogConfig{
			Adapter: adp,
			Schema:  cfg.Knowledge.Schema,
			Table:   cfg.Knowledge.Table,
			Logger:  logger,
		})
		if cerr == nil {
			if keys, kerr := catalog.ExistingKeys(ctx); kerr != nil {
				checks = append(checks, warnCheck("knowledge", "Knowledge catalog", "warehouse",
					fmt.Sprintf("%s not readable; run 'compass sync' to create it", catalog.QualifiedTable())))
			} else {
				checks = append(checks, passCheck("knowledge", "Knowledge catalog", "warehouse",
					fmt.Sprintf("%d columns described", len(keys))))
			}
		}
		cleanup()
	}

	// Model endpoint
	key := cfg.LLM.APIKey
	if key == "" || strings.Contains(key, "${") {
		checks = append(checks, errorCheck("model", "Model API key", "model",
			"llm.api_key is not set and the referenced environment variable is empty"))
	} else {
		checks = append(checks, passCheck("model", "Model API key", "model", cfg.LLM.Model))
	}

	// Run history
	if _, closeStore, serr := openStateStore(cfg); serr != nil {
		checks = append(checks, warnCheck("state", "Run history database", "state", serr.Error()))
	} else {
		closeStore()
		checks = append(checks, passCheck("state", "Run history database", "state", cfg.StatePath))
	}

	// Tool servers
	if len(cfg.Tools.Servers) == 0 {
		checks = append(checks, passCheck("tools", "Tool servers", "tools", "none configured"))
	} else {
		source, closeTools, terr := connectToolSource(ctx, cfg, logger)
		if terr != nil {
			checks = append(checks, warnCheck("tools", "Tool servers", "tools", terr.Error()))
		} else {
			defs, lerr := source.List(ctx)
			closeTools()
			if lerr != nil {
				checks = append(checks, warnCheck("tools", "Tool servers", "tools",
					fmt.Sprintf("connected but listing failed: %v", lerr)))
			} else {
				checks = append(checks, passCheck("tools", "Tool servers", "tools",
					fmt.Sprintf("%d servers, %d tools", len(cfg.Tools.Servers), len(defs))))
			}
		}
	}

	issues := 0
	for _, c := range checks {
		if c.Status != "pass" {
			issues++
		}
	}

	return &DoctorOutput{
		Summary:         summary,
		Checks:          checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func passCheck(id, name, group, detail string) HealthCheck {
	c := HealthCheck{ID: id, Name: name, Group: group, Status: "pass"}
	if detail != "" {
		c.Details = []string{detail}
	}
	return c
}

func warnCheck(id, name, group, detail string) HealthCheck {
	return HealthCheck{ID: id, Name: name, Group: group, Status: "warn", Details: []string{detail}}
}

func errorCheck(id, name, group, detail string) HealthCheck {
	return HealthCheck{ID: id, Name: name, Group: group, Status: "error", Details: []string{detail}}
}

// calculateHealthScore computes a health score from 0-100.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100.0
	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= 20
		case "warn":
			score -= 7
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.Status == "pass" {
			continue
		}

		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(checkID string) string {
	switch checkID {
	case "config":
		return "Run 'compass init' to scaffold a compass.yaml"
	case "manifest":
		return "Run your dbt build, or point manifest_path at an existing manifest.json"
	case "graph":
		return "Regenerate the manifest; the current file does not parse into a lineage graph"
	case "cycles":
		return "Break the dependency cycles so depth ordering stays meaningful"
	case "warehouse":
		return "Check the target block in compass.yaml and the warehouse credentials"
	case "knowledge":
		return "Run 'compass sync' to create and populate the knowledge catalog"
	case "model":
		return "Export ANTHROPIC_API_KEY or set llm.api_key in compass.yaml"
	case "state":
		return "Make state_path writable, or set it to :memory: to disable run history"
	case "tools":
		return "Check the tools.servers commands and URLs in compass.yaml"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("Compass Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	if out.Summary.Relations > 0 {
		r.Println(styles.Header2.Render("Lineage Summary"))
		r.Printf("   Relations: %d | Edges: %d | Max depth: %d | Cycles: %d\n",
			out.Summary.Relations, out.Summary.Edges, out.Summary.MaxDepth, out.Summary.Cycles)
		r.Println("")
	}

	r.Println(styles.Header2.Render("Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		r.Println("   " + fmt.Sprintf("%s %s", icon, check.Name))

		// Show first 3 details
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# Compass Health Report")
	r.Println("")

	if out.Summary.Relations > 0 {
		r.Println("## Lineage Summary")
		r.Println("")
		r.Printf("- **Relations**: %d\n", out.Summary.Relations)
		r.Printf("- **Edges**: %d\n", out.Summary.Edges)
		r.Printf("- **Max depth**: %d\n", out.Summary.MaxDepth)
		r.Printf("- **Cycles**: %d\n", out.Summary.Cycles)
		r.Println("")
	}

	r.Println("## Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s\n", status, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
