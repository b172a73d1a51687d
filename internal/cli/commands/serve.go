package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/compass/internal/expander"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/server"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the expansion loop over HTTP",
		Long: `Start an HTTP server exposing the same operations as the CLI:

  POST /api/ask      Run a scope expansion for a question
  GET  /api/lineage  The current lineage snapshot with depths
  GET  /api/runs     Recorded expansion runs
  GET  /healthz      Liveness and snapshot stats

With --watch (the default), the manifest is re-parsed whenever it
changes on disk and the lineage snapshot is swapped atomically;
in-flight requests finish against the snapshot they started with.`,
		Example: `  # Serve on the default port
  compass serve

  # Serve on a custom port without manifest watching
  compass serve --port 9090 --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8787)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Re-parse the manifest when it changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger
	r := cmdCtx.Renderer

	if err := cfg.ValidateManifest(); err != nil {
		return err
	}

	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adp, adpCleanup, err := connectAdapter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer adpCleanup()

	client, err := newModelClient(cfg, logger)
	if err != nil {
		return err
	}

	source, toolCleanup, err := connectToolSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer toolCleanup()

	var store core.Store
	if st, cleanup, err := openStateStore(cfg); err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		store = st
		defer cleanup()
	}

	buildExpander := func(graph *lineage.Graph, depths *lineage.DepthResult) (*expander.Expander, error) {
		judge, generator, err := newReasoners(cfg, logger, client, source)
		if err != nil {
			return nil, err
		}
		return expander.New(expander.Config{
			Judge:         judge,
			Generator:     generator,
			Executor:      &warehouseExecutor{adp: adp},
			Graph:         graph,
			Depths:        depths,
			Annotations:   loadAnnotations(ctx, adp, graph, cfg, logger),
			MaxIterations: cfg.Expander.MaxIterations,
			Logger:        logger,
		})
	}

	srv, err := server.New(server.Config{
		ManifestPath:  cfg.ManifestPath,
		Port:          port,
		Watch:         watch,
		BuildExpander: buildExpander,
		Store:         store,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	r.Printf("Serving on http://localhost:%d\n", port)
	r.Muted(fmt.Sprintf("manifest: %s (watch: %t)", cfg.ManifestPath, watch))
	r.Muted("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}
