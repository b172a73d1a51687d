package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Multi merges several sources behind one facade. Calls route to
// whichever source last listed the tool; on duplicate names the first
// source wins.
type Multi struct {
	sources []Source
	logger  *slog.Logger

	mu    sync.Mutex
	owner map[string]Source
}

// NewMulti builds an aggregate over the given sources.
func NewMulti(logger *slog.Logger, sources ...Source) *Multi {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Multi{
		sources: sources,
		logger:  logger,
		owner:   make(map[string]Source),
	}
}

// List fetches descriptors from every source and rebuilds the routing
// table.
func (m *Multi) List(ctx context.Context) ([]Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owner = make(map[string]Source)
	var merged []Descriptor
	for _, src := range m.sources {
		descriptors, err := src.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range descriptors {
			if _, taken := m.owner[d.Name]; taken {
				m.logger.Warn("duplicate tool name, keeping first", "tool", d.Name)
				continue
			}
			m.owner[d.Name] = src
			merged = append(merged, d)
		}
	}
	return merged, nil
}

// Call routes the call to the owning source.
func (m *Multi) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	m.mu.Lock()
	src, ok := m.owner[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no source offers tool %q", name)
	}
	return src.Call(ctx, name, args)
}

// Close closes every source, returning the first failure.
func (m *Multi) Close() error {
	var firstErr error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
