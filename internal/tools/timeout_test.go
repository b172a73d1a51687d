package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineCapturingSource struct {
	stubSource
	hadDeadline bool
	deadline    time.Time
}

func (s *deadlineCapturingSource) List(ctx context.Context) ([]Descriptor, error) {
	s.deadline, s.hadDeadline = ctx.Deadline()
	return s.stubSource.List(ctx)
}

func (s *deadlineCapturingSource) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	s.deadline, s.hadDeadline = ctx.Deadline()
	return s.stubSource.Call(ctx, name, args)
}

func TestWithCallTimeoutBoundsEachCall(t *testing.T) {
	src := &deadlineCapturingSource{}
	wrapped := WithCallTimeout(src, 50*time.Millisecond)

	_, err := wrapped.Call(context.Background(), "query", nil)
	require.NoError(t, err)

	assert.True(t, src.hadDeadline, "call context should carry a deadline")
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), src.deadline, 40*time.Millisecond)
}

func TestWithCallTimeoutListUnbounded(t *testing.T) {
	src := &deadlineCapturingSource{}
	wrapped := WithCallTimeout(src, time.Second)

	_, err := wrapped.List(context.Background())
	require.NoError(t, err)
	assert.False(t, src.hadDeadline)
}

func TestWithCallTimeoutZeroIsPassthrough(t *testing.T) {
	src := &stubSource{}
	assert.Same(t, Source(src), WithCallTimeout(src, 0))
}

func TestWithCallTimeoutClosePropagates(t *testing.T) {
	src := &stubSource{}
	wrapped := WithCallTimeout(src, time.Second)
	require.NoError(t, wrapped.Close())
	assert.True(t, src.closed)
}
