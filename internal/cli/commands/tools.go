package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewToolsCommand creates the tools command.
func NewToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools offered by the configured tool servers",
		Long: `Connect to every configured tool server and list the tools they
currently offer. The reasoning loop fetches this registry fresh at the
start of each run, so this command shows exactly what the model will
see.`,
		Example: `  # List available tools
  compass tools

  # Machine-readable registry
  compass tools -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd)
		},
	}

	return cmd
}

func runTools(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	source, cleanup, err := connectToolSource(ctx, cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	descriptors, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	infos := make([]output.ToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, output.ToolInfo{Name: d.Name, Description: d.Description})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(struct {
			Tools []output.ToolInfo `json:"tools"`
			Count int               `json:"count"`
		}{Tools: infos, Count: len(infos)})
	case output.ModeMarkdown:
		return toolsMarkdown(r, infos)
	default:
		return toolsText(r, infos)
	}
}

func toolsText(r *output.Renderer, infos []output.ToolInfo) error {
	r.Header(1, fmt.Sprintf("Tools (%d available)", len(infos)))

	if len(infos) == 0 {
		r.Muted("No tool servers configured; the model reasons without tools")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Description"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Name, info.Description})
	}
	t.Render()
	return nil
}

func toolsMarkdown(r *output.Renderer, infos []output.ToolInfo) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Tools (%d available)", len(infos))))
	r.Println("")

	if len(infos) == 0 {
		r.Println("No tool servers configured; the model reasons without tools.")
		return nil
	}

	for _, info := range infos {
		r.Printf("- **%s** - %s\n", info.Name, info.Description)
	}
	r.Println("")
	return nil
}
