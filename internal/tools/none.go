package tools

import (
	"context"
	"fmt"
)

type noneSource struct{}

// None returns a Source that offers no tools. It backs runs where the
// model should answer from the prompt alone.
func None() Source {
	return noneSource{}
}

func (noneSource) List(context.Context) ([]Descriptor, error) {
	return nil, nil
}

func (noneSource) Call(_ context.Context, name string, _ map[string]any) (*Result, error) {
	return nil, fmt.Errorf("no tools available, cannot call %q", name)
}

func (noneSource) Close() error { return nil }
