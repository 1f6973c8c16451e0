// Package scheduler runs the timer loop driving the three background
// jobs: the due-post check, the retry sweep, and the analytics refresh.
// Each job runs on its own fixed interval in singleton mode, so a slow
// cycle never overlaps with the next one. A job cycle that panics or
// returns an error is logged and the loop keeps ticking.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/threadflow/go-post-scheduler/internal/services"
)

// Fixed job names, used as gocron tags and metric labels.
const (
	JobDueCheck         = "due_check"
	JobRetrySweep       = "retry_sweep"
	JobAnalyticsRefresh = "analytics_refresh"
)

// ErrUnknownJob is returned by RunNow for a name no job carries.
var ErrUnknownJob = errors.New("unknown job")

// Job is one scheduled background task.
type Job struct {
	// Name tags the job in logs, metrics, and the trigger endpoint.
	Name string
	// Interval is the fixed tick between cycles.
	Interval time.Duration
	// Run executes one cycle at the given logical time.
	Run func(ctx context.Context, now time.Time) (services.JobResult, error)
}

// Core owns the timer loop and the job set.
type Core struct {
	sched *gocron.Scheduler
	log   zerolog.Logger
	jobs  map[string]Job

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// New builds a Core around the given jobs. Call Start to begin ticking.
func New(log zerolog.Logger, jobs ...Job) *Core {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	byName := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	return &Core{sched: s, log: log, jobs: byName}
}

// Start registers every job with its interval and launches the loop in the
// background. Starting twice is an error.
func (c *Core) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("scheduler already started")
	}
	for name, j := range c.jobs {
		job := j
		_, err := c.sched.Every(job.Interval).Tag(name).SingletonMode().Do(func() {
			c.runCycle(context.Background(), job)
		})
		if err != nil {
			return fmt.Errorf("register job %s: %w", name, err)
		}
	}
	c.sched.StartAsync()
	c.started = true
	c.log.Info().Int("jobs", len(c.jobs)).Msg("scheduler started")
	return nil
}

// RunNow executes one cycle of the named job immediately, outside its
// timer. The trigger endpoints use it.
func (c *Core) RunNow(ctx context.Context, name string) (services.JobResult, error) {
	j, ok := c.jobs[name]
	if !ok {
		return services.JobResult{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return c.runCycle(ctx, j)
}

// Shutdown stops the timer loop and waits for in-flight cycles to finish,
// bounded by the context deadline.
func (c *Core) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.sched.Stop()
		c.started = false
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// runCycle executes one job cycle with panic capture, logging, and
// metrics.
func (c *Core) runCycle(ctx context.Context, j Job) (res services.JobResult, err error) {
	c.wg.Add(1)
	defer c.wg.Done()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
			c.log.Error().Str("job", j.Name).Interface("panic", r).Msg("job cycle panicked")
		}
		observeRun(j.Name, time.Since(start).Seconds(), err, res.Succeeded, res.Failed, res.Skipped)
	}()

	res, err = j.Run(ctx, start.UTC())
	if err != nil {
		c.log.Error().Str("job", j.Name).Err(err).Msg("job cycle failed")
		return res, err
	}
	if res.Selected > 0 {
		c.log.Info().
			Str("job", j.Name).
			Int("selected", res.Selected).
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Int("skipped", res.Skipped).
			Dur("took", time.Since(start)).
			Msg("job cycle finished")
	}
	return res, nil
}

// Jobs returns the registered job names, for the trigger endpoint's
// validation error message.
func (c *Core) Jobs() []string {
	names := make([]string, 0, len(c.jobs))
	for name := range c.jobs {
		names = append(names, name)
	}
	return names
}
