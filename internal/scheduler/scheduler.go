// Package scheduler drives the collectors: periodic sweeps on their own
// cadences plus long-running watchers, all restarted on failure so one bad
// cycle never takes the process down.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	taskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenscout_task_runs_total",
		Help: "Number of task executions, by task and outcome.",
	}, []string{"task", "outcome"})
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenscout_task_duration_seconds",
		Help:    "Task execution duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 3, 10),
	}, []string{"task"})
)

// TaskFunc is one unit of collector work.
type TaskFunc func(ctx context.Context) error

// Task is a named schedulable unit. A zero Interval marks a long-running
// task: it is expected to block until ctx is cancelled and is restarted
// after RestartDelay if it returns or panics early.
type Task struct {
	Name     string
	Interval time.Duration
	Run      TaskFunc
}

// Config holds scheduler configuration.
type Config struct {
	// RestartDelay is the pause before restarting a long-running task
	// that exited.
	RestartDelay time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		RestartDelay: 30 * time.Second,
	}
}

// Scheduler runs a set of tasks until its context is cancelled.
type Scheduler struct {
	cfg   Config
	tasks []Task
	log   zerolog.Logger
}

// New returns a Scheduler.
func New(cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = DefaultConfig().RestartDelay
	}
	return &Scheduler{
		cfg: cfg,
		log: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a task. Not safe to call after Run.
func (s *Scheduler) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// Run starts every task and blocks until ctx is cancelled and all tasks have
// drained. Task failures are contained: they are logged, counted and
// retried on the task's own schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range s.tasks {
		t := task
		g.Go(func() error {
			if t.Interval > 0 {
				return s.runPeriodic(ctx, t)
			}
			return s.runForever(ctx, t)
		})
	}
	s.log.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
	err := g.Wait()
	s.log.Info().Msg("scheduler stopped")
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// runPeriodic runs the task immediately, then on every tick.
func (s *Scheduler) runPeriodic(ctx context.Context, t Task) error {
	s.runOnce(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runForever keeps a long-running task alive, restarting after RestartDelay
// whenever it exits before shutdown.
func (s *Scheduler) runForever(ctx context.Context, t Task) error {
	for {
		s.runOnce(ctx, t)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Str("task", t.Name).Dur("delay", s.cfg.RestartDelay).Msg("task exited, restarting")

		timer := time.NewTimer(s.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runOnce executes one task invocation with panic containment. Every
// invocation gets a run ID so its log lines can be correlated.
func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	runID := uuid.NewString()
	log := s.log.With().Str("task", t.Name).Str("run_id", runID).Logger()
	start := time.Now()

	var panicked bool
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = fmt.Errorf("panic: %v", r)
				log.Error().Str("stack", string(debug.Stack())).Msgf("task panicked: %v", r)
			}
		}()
		return t.Run(ctx)
	}()

	taskDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
	switch {
	case panicked:
		taskRuns.WithLabelValues(t.Name, "panic").Inc()
	case err == nil:
		taskRuns.WithLabelValues(t.Name, "ok").Inc()
		log.Debug().Dur("took", time.Since(start)).Msg("task completed")
	case ctx.Err() != nil:
		// Shutdown in progress; the error is just the cancellation.
	default:
		taskRuns.WithLabelValues(t.Name, "error").Inc()
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("task failed")
	}
}
