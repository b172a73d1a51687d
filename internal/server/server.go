// Package server exposes the expansion loop over HTTP: ask a question,
// read the lineage snapshot, browse run history. The lineage snapshot
// is immutable once built; manifest changes swap in a fresh snapshot
// under a lock rather than mutating the one requests are reading.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/compass/internal/expander"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/manifest"
	"github.com/leapstack-labs/compass/pkg/core"
)

const (
	defaultPort       = 8787
	defaultAskTimeout = 10 * time.Minute

	// Manifest rewrites arrive as bursts of filesystem events; reloads
	// collapse behind a short debounce.
	reloadDebounce = 100 * time.Millisecond
)

// Config wires a server together.
type Config struct {
	// ManifestPath locates the manifest to parse and, when Watch is
	// set, to watch for changes.
	ManifestPath string

	// Port to listen on. Defaults to 8787.
	Port int

	// Watch re-parses the manifest when it changes on disk.
	Watch bool

	// BuildExpander constructs an expander bound to one graph snapshot.
	// Called at startup and again after every manifest reload.
	BuildExpander func(g *lineage.Graph, d *lineage.DepthResult) (*expander.Expander, error)

	// Store records expansion runs. Optional; without it /api/runs is
	// unavailable and asks are simply not recorded.
	Store core.Store

	// AskTimeout bounds one expansion run. Defaults to 10 minutes.
	AskTimeout time.Duration

	Logger *slog.Logger
}

// Server serves the compass HTTP API.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	graph  *lineage.Graph
	depths *lineage.DepthResult
	exp    *expander.Expander
}

// New validates the config, loads the initial lineage snapshot, and
// builds a server.
func New(cfg Config) (*Server, error) {
	if cfg.ManifestPath == "" {
		return nil, fmt.Errorf("server requires a manifest path")
	}
	if cfg.BuildExpander == nil {
		return nil, fmt.Errorf("server requires an expander builder")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = defaultAskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{cfg: cfg, logger: cfg.Logger}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Serve starts the HTTP server and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting api server", "addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watchManifest(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down api server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// reload parses the manifest and swaps in a fresh snapshot.
func (s *Server) reload() error {
	m, err := manifest.Load(s.cfg.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	graph := lineage.Build(m, s.logger)
	depths := graph.Depths()

	exp, err := s.cfg.BuildExpander(graph, depths)
	if err != nil {
		return fmt.Errorf("failed to build expander: %w", err)
	}

	s.mu.Lock()
	s.graph, s.depths, s.exp = graph, depths, exp
	s.mu.Unlock()

	s.logger.Info("lineage snapshot loaded",
		"relations", graph.RelationCount(),
		"edges", graph.EdgeCount(),
		"max_depth", depths.MaxDepth())
	return nil
}

// snapshot returns the current graph, depths, and expander together so
// one request never mixes two generations.
func (s *Server) snapshot() (*lineage.Graph, *lineage.DepthResult, *expander.Expander) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph, s.depths, s.exp
}

// watchManifest re-parses the manifest when it changes on disk. The
// parent directory is watched because build tools replace the manifest
// by rename, which would orphan a watch on the file itself.
func (s *Server) watchManifest(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.cfg.ManifestPath)); err != nil {
		return fmt.Errorf("failed to watch manifest directory: %w", err)
	}

	target := filepath.Base(s.cfg.ManifestPath)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != target {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Debug("manifest changed, reloading", "file", event.Name)
				if err := s.reload(); err != nil {
					// The previous snapshot keeps serving.
					s.logger.Error("manifest reload failed", "error", err)
				}
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}
