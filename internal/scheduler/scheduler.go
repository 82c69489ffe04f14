// Package scheduler runs the periodic background jobs (SLA monitoring and
// automation) on cron schedules with a back-off after failed ticks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// ErrUnknownJob is returned by Trigger for a name that was never registered.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Job is one periodic unit of work.
type Job struct {
	Name     string
	Schedule cron.Schedule
	// Backoff replaces the schedule for the next wait after a failed run.
	// Zero keeps the regular schedule.
	Backoff time.Duration
	Run     func(ctx context.Context) error
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	Name                string     `json:"name"`
	Running             bool       `json:"running"`
	Runs                int64      `json:"runs"`
	Failures            int64      `json:"failures"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastStartedAt       *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt      *time.Time `json:"last_finished_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
}

type jobState struct {
	job     Job
	trigger chan struct{}
	status  JobStatus
}

// Controller owns the job goroutines.
type Controller struct {
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	jobs    []*jobState
	byName  map[string]*jobState
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewController creates an idle controller.
func NewController(clk clock.Clock, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		clock:   clk,
		logger:  logger.Named("scheduler"),
		metrics: metrics,
		byName:  make(map[string]*jobState),
	}
}

// Register adds a job. Jobs registered after Start are not run.
func (c *Controller) Register(job Job) error {
	if job.Name == "" || job.Schedule == nil || job.Run == nil {
		return fmt.Errorf("scheduler: job %q needs a name, schedule and run func", job.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[job.Name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}
	state := &jobState{
		job:     job,
		trigger: make(chan struct{}, 1),
		status:  JobStatus{Name: job.Name},
	}
	c.jobs = append(c.jobs, state)
	c.byName[job.Name] = state
	return nil
}

// Start launches one goroutine per job. Calling Start twice is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	for _, state := range c.jobs {
		c.wg.Add(1)
		go c.loop(runCtx, state)
	}
	c.logger.Info("scheduler started", zap.Int("jobs", len(c.jobs)))
}

// Stop cancels the running jobs and waits for them to return.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	c.logger.Info("scheduler stopped")
}

// Trigger requests an immediate run of the named job. Requests made while
// the job is busy collapse into one extra run.
func (c *Controller) Trigger(name string) error {
	c.mu.Lock()
	state, ok := c.byName[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	select {
	case state.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Status returns every job's status in registration order.
func (c *Controller) Status() []JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]JobStatus, 0, len(c.jobs))
	for _, state := range c.jobs {
		out = append(out, state.status)
	}
	return out
}

func (c *Controller) loop(ctx context.Context, state *jobState) {
	defer c.wg.Done()
	logger := c.logger.With(zap.String("job", state.job.Name))
	failed := false

	for {
		now := c.clock.Now()
		next := state.job.Schedule.Next(now)
		if failed && state.job.Backoff > 0 {
			next = now.Add(state.job.Backoff)
		}
		c.update(state, func(s *JobStatus) { s.NextRunAt = &next })

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(next.Sub(now)):
		case <-state.trigger:
			logger.Info("job triggered")
		}
		if ctx.Err() != nil {
			return
		}

		err := c.runOnce(ctx, state)
		failed = err != nil
		if err != nil {
			logger.Error("job run failed", zap.Error(err))
		}
	}
}

func (c *Controller) runOnce(ctx context.Context, state *jobState) (err error) {
	started := c.clock.Now()
	c.update(state, func(s *JobStatus) {
		s.Running = true
		s.LastStartedAt = &started
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", state.job.Name, r)
		}
		finished := c.clock.Now()
		c.update(state, func(s *JobStatus) {
			s.Running = false
			s.Runs++
			s.LastFinishedAt = &finished
			if err != nil {
				s.Failures++
				s.ConsecutiveFailures++
				s.LastError = err.Error()
				return
			}
			s.ConsecutiveFailures = 0
			s.LastError = ""
		})
		c.metrics.RecordJobRun(state.job.Name, err)
	}()

	return state.job.Run(ctx)
}

func (c *Controller) update(state *jobState, fn func(*JobStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&state.status)
}
