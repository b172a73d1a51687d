package tools

import (
	"context"
	"time"
)

// WithCallTimeout wraps a source so every Call is bounded by d,
// independent of the deadline governing the overall run. A
// non-positive d returns the source unchanged.
func WithCallTimeout(src Source, d time.Duration) Source {
	if d <= 0 {
		return src
	}
	return &timeoutSource{src: src, d: d}
}

type timeoutSource struct {
	src Source
	d   time.Duration
}

func (t *timeoutSource) List(ctx context.Context) ([]Descriptor, error) {
	return t.src.List(ctx)
}

func (t *timeoutSource) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.src.Call(callCtx, name, args)
}

func (t *timeoutSource) Close() error {
	return t.src.Close()
}
