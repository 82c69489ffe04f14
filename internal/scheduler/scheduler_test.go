package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func waitRun(t *testing.T, runs <-chan int) int {
	t.Helper()
	select {
	case n := <-runs:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
		return 0
	}
}

func newController(t *testing.T) (*Controller, *clock.FakeClock, *observability.Metrics) {
	t.Helper()
	clk := clock.Fake(start)
	metrics := observability.NewMetrics()
	c := NewController(clk, zap.NewNop(), metrics)
	t.Cleanup(c.Stop)
	return c, clk, metrics
}

func TestControllerRunsOnSchedule(t *testing.T) {
	c, clk, metrics := newController(t)
	runs := make(chan int, 10)
	count := 0
	require.NoError(t, c.Register(Job{
		Name:     "sla_monitor",
		Schedule: cron.Every(15 * time.Minute),
		Run: func(context.Context) error {
			count++
			runs <- count
			return nil
		},
	}))
	c.Start(context.Background())

	clk.WaitForWaiters(1)
	clk.Advance(14 * time.Minute)
	assert.Equal(t, 1, clk.Waiters())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, waitRun(t, runs))

	clk.WaitForWaiters(1)
	status := c.Status()
	require.Len(t, status, 1)
	assert.Equal(t, int64(1), status[0].Runs)
	assert.False(t, status[0].Running)
	require.NotNil(t, status[0].NextRunAt)
	assert.Equal(t, start.Add(30*time.Minute), *status[0].NextRunAt)
	assert.Equal(t, int64(1), metrics.Snapshot().JobRuns["sla_monitor"])
}

func TestControllerBacksOffAfterFailure(t *testing.T) {
	c, clk, metrics := newController(t)
	runs := make(chan int, 10)
	count := 0
	require.NoError(t, c.Register(Job{
		Name:     "automation",
		Schedule: cron.Every(time.Hour),
		Backoff:  time.Minute,
		Run: func(context.Context) error {
			count++
			runs <- count
			if count == 1 {
				return errors.New("store unavailable")
			}
			return nil
		},
	}))
	c.Start(context.Background())

	clk.WaitForWaiters(1)
	clk.Advance(time.Hour)
	waitRun(t, runs)

	clk.WaitForWaiters(1)
	status := c.Status()[0]
	assert.Equal(t, 1, status.ConsecutiveFailures)
	assert.Equal(t, "store unavailable", status.LastError)
	assert.Equal(t, start.Add(time.Hour+time.Minute), *status.NextRunAt)

	clk.Advance(time.Minute)
	assert.Equal(t, 2, waitRun(t, runs))

	clk.WaitForWaiters(1)
	status = c.Status()[0]
	assert.Equal(t, int64(2), status.Runs)
	assert.Equal(t, int64(1), status.Failures)
	assert.Zero(t, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
	assert.Equal(t, int64(1), metrics.Snapshot().JobFailures["automation"])
}

func TestControllerRecoversPanics(t *testing.T) {
	c, clk, _ := newController(t)
	runs := make(chan int, 10)
	count := 0
	require.NoError(t, c.Register(Job{
		Name:     "sla_monitor",
		Schedule: cron.Every(time.Minute),
		Run: func(context.Context) error {
			count++
			runs <- count
			if count == 1 {
				panic("nil rule")
			}
			return nil
		},
	}))
	c.Start(context.Background())

	clk.WaitForWaiters(1)
	clk.Advance(time.Minute)
	waitRun(t, runs)

	clk.WaitForWaiters(1)
	status := c.Status()[0]
	assert.Equal(t, int64(1), status.Failures)
	assert.Contains(t, status.LastError, "panicked: nil rule")

	clk.Advance(time.Minute)
	assert.Equal(t, 2, waitRun(t, runs))
}

func TestControllerTrigger(t *testing.T) {
	c, clk, _ := newController(t)
	runs := make(chan int, 10)
	require.NoError(t, c.Register(Job{
		Name:     "automation",
		Schedule: cron.Every(time.Hour),
		Run: func(context.Context) error {
			runs <- 1
			return nil
		},
	}))
	c.Start(context.Background())
	clk.WaitForWaiters(1)

	require.NoError(t, c.Trigger("automation"))
	waitRun(t, runs)

	assert.ErrorIs(t, c.Trigger("reports"), ErrUnknownJob)
}

func TestControllerStopCancelsRunningJob(t *testing.T) {
	c, clk, _ := newController(t)
	started := make(chan struct{})
	var runErr error
	require.NoError(t, c.Register(Job{
		Name:     "sla_monitor",
		Schedule: cron.Every(time.Minute),
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			runErr = ctx.Err()
			return runErr
		},
	}))
	c.Start(context.Background())

	clk.WaitForWaiters(1)
	clk.Advance(time.Minute)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}

	c.Stop()
	assert.ErrorIs(t, runErr, context.Canceled)
}

func TestRegisterRejectsInvalidJobs(t *testing.T) {
	c := NewController(clock.Fake(start), nil, nil)
	run := func(context.Context) error { return nil }

	assert.Error(t, c.Register(Job{Name: "x", Run: run}))
	assert.Error(t, c.Register(Job{Schedule: cron.Every(time.Minute), Run: run}))
	require.NoError(t, c.Register(Job{Name: "x", Schedule: cron.Every(time.Minute), Run: run}))
	assert.Error(t, c.Register(Job{Name: "x", Schedule: cron.Every(time.Minute), Run: run}))
}
