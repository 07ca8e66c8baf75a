package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(time.Second)
	err := s.Add("bad", "not a schedule", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestAddRejectsDuplicate(t *testing.T) {
	s := New(time.Second)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add("sweep", "@every 1h", noop))
	require.Error(t, s.Add("sweep", "@every 2h", noop))
}

func TestRunNow(t *testing.T) {
	s := New(time.Second)
	calls := 0
	boom := errors.New("boom")

	require.NoError(t, s.Add("count", "@daily", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		return nil
	}))
	require.NoError(t, s.Add("fail", "@daily", func(context.Context) error { return boom }))

	require.NoError(t, s.RunNow("count"))
	require.Equal(t, 1, calls)
	require.ErrorIs(t, s.RunNow("fail"), boom)
	require.Error(t, s.RunNow("missing"))
}

func TestStopCancelsJobs(t *testing.T) {
	s := New(0)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	require.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
