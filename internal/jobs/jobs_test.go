package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	last  atomic.Value
	err   error
}

func (c *countingExpirer) ExpireStalePending(_ context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	c.last.Store(now)
	return 2, c.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunnerFiresImmediately(t *testing.T) {
	exp := &countingExpirer{}
	r, err := New(exp, time.Hour, quiet())
	require.NoError(t, err)

	r.Start()
	assert.Eventually(t, func() bool { return exp.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Stop())
}

func TestExpireStaleUsesClockAndSurvivesErrors(t *testing.T) {
	fixed := time.Date(2025, 1, 5, 3, 0, 0, 0, time.UTC)
	exp := &countingExpirer{err: errors.New("db down")}
	r, err := New(exp, time.Hour, quiet())
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()
	r.now = func() time.Time { return fixed }

	require.NotPanics(t, r.expireStale)
	assert.Equal(t, int32(1), exp.calls.Load())
	assert.Equal(t, fixed, exp.last.Load())
}
