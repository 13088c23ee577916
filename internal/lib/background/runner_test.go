package background_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linemk/proshop/internal/lib/background"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newRunner(workers, queue int) (*background.Runner, *metrics.Metrics) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := metrics.New(prometheus.NewRegistry())
	return background.NewRunner(logger, m, workers, queue), m
}

func TestRunner_ExecutesSubmittedTasks(t *testing.T) {
	runner, m := newRunner(2, 10)

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		ok := runner.Submit("count", func(ctx context.Context) error {
			done.Add(1)
			return nil
		})
		assert.True(t, ok)
	}

	// Shutdown дожидается выполнения всей очереди.
	assert.NoError(t, runner.Shutdown(context.Background()))
	assert.Equal(t, int32(5), done.Load())
	assert.Equal(t, float64(5), testutil.ToFloat64(m.Tasks.WithLabelValues("count", metrics.TaskSucceeded)))
}

func TestRunner_FailureAndPanicAreSwallowed(t *testing.T) {
	runner, m := newRunner(1, 10)

	runner.Submit("broken", func(ctx context.Context) error {
		return errors.New("store unavailable")
	})
	runner.Submit("broken", func(ctx context.Context) error {
		panic("boom")
	})
	var after atomic.Bool
	runner.Submit("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})

	assert.NoError(t, runner.Shutdown(context.Background()))
	// Воркер пережил панику и выполнил следующую задачу.
	assert.True(t, after.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Tasks.WithLabelValues("broken", metrics.TaskFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Tasks.WithLabelValues("broken", metrics.TaskPanicked)))
}

func TestRunner_SubmitDoesNotBlockWhenQueueIsFull(t *testing.T) {
	runner, m := newRunner(1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	runner.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// Первая задача занимает воркер, вторая - единственное место в очереди.
	assert.True(t, runner.Submit("queued", func(ctx context.Context) error { return nil }))

	begin := time.Now()
	assert.False(t, runner.Submit("extra", func(ctx context.Context) error { return nil }))
	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Tasks.WithLabelValues("extra", metrics.TaskDropped)))

	close(release)
	assert.NoError(t, runner.Shutdown(context.Background()))
}

func TestRunner_SubmitAfterShutdownIsRejected(t *testing.T) {
	runner, _ := newRunner(1, 1)
	assert.NoError(t, runner.Shutdown(context.Background()))

	assert.False(t, runner.Submit("late", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, runner.Shutdown(context.Background()), background.ErrRunnerStopped)
}

func TestRunner_ShutdownDeadlineCancelsRunningTasks(t *testing.T) {
	runner, _ := newRunner(1, 1)

	cancelled := make(chan struct{})
	started := make(chan struct{})
	runner.Submit("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runner.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
}
