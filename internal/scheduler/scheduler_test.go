package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 30*time.Second, cfg.RestartDelay)
}

func TestPeriodicTaskRunsImmediately(t *testing.T) {
	var runs atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{
		Name:     "sweep",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	// The first run happens before the first tick.
	require.Equal(t, int64(1), runs.Load())
}

func TestPeriodicTaskTicks(t *testing.T) {
	var runs atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{
		Name:     "sweep",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	require.GreaterOrEqual(t, runs.Load(), int64(3))
}

func TestPeriodicTaskSurvivesErrors(t *testing.T) {
	var runs atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{
		Name:     "failing-sweep",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("upstream down")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	// A failing sweep is retried on schedule, not propagated.
	require.NoError(t, s.Run(ctx))
	require.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestTaskPanicIsContained(t *testing.T) {
	var runs atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{
		Name:     "panicking-sweep",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			panic("boom")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	require.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestLongRunningTaskRestarts(t *testing.T) {
	var starts atomic.Int64

	s := New(Config{RestartDelay: 10 * time.Millisecond}, zerolog.Nop())
	s.Add(Task{
		Name: "watcher",
		Run: func(ctx context.Context) error {
			starts.Add(1)
			return errors.New("connection lost")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	require.GreaterOrEqual(t, starts.Load(), int64(2))
}

func TestLongRunningTaskBlocksUntilCancel(t *testing.T) {
	var starts atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{
		Name: "watcher",
		Run: func(ctx context.Context) error {
			starts.Add(1)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	require.Equal(t, int64(1), starts.Load())
}

func TestMultipleTasksRunConcurrently(t *testing.T) {
	var a, b atomic.Int64

	s := New(DefaultConfig(), zerolog.Nop())
	s.Add(Task{Name: "a", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		a.Add(1)
		return nil
	}})
	s.Add(Task{Name: "b", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		b.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(80*time.Millisecond, cancel)

	require.NoError(t, s.Run(ctx))
	require.GreaterOrEqual(t, a.Load(), int64(2))
	require.GreaterOrEqual(t, b.Load(), int64(2))
}

func TestNewDefaultsRestartDelay(t *testing.T) {
	s := New(Config{}, zerolog.Nop())
	require.Equal(t, DefaultConfig().RestartDelay, s.cfg.RestartDelay)
}
