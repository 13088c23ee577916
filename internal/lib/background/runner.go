package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/linemk/proshop/internal/lib/metrics"
)

// Task - единица фоновой работы. Контекст не связан с HTTP-запросом,
// он отменяется только если остановка сервера не уложилась в таймаут.
type Task func(ctx context.Context) error

// Submitter - то, что нужно сервисам: поставить задачу и не ждать ее.
type Submitter interface {
	Submit(name string, task Task) bool
}

var ErrRunnerStopped = errors.New("background runner stopped")

type job struct {
	name string
	task Task
}

// Runner выполняет задачи пулом воркеров из ограниченной очереди.
// Семантика best effort: задача выполняется не более одного раза, без повторов,
// при переполнении очереди отбрасывается, при завершении процесса теряется.
type Runner struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(log *slog.Logger, m *metrics.Metrics, workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		log:     log.With(slog.String("component", "background.Runner")),
		metrics: m,
		jobs:    make(chan job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Submit ставит задачу в очередь и никогда не блокирует вызывающего.
// Возвращает false, если очередь заполнена или раннер остановлен.
func (r *Runner) Submit(name string, task Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.log.Warn("task rejected: runner stopped", slog.String("task", name))
		r.metrics.Tasks.WithLabelValues(name, metrics.TaskDropped).Inc()
		return false
	}

	select {
	case r.jobs <- job{name: name, task: task}:
		return true
	default:
		r.log.Error("task dropped: queue is full", slog.String("task", name))
		r.metrics.Tasks.WithLabelValues(name, metrics.TaskDropped).Inc()
		return false
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	logger := r.log.With(slog.String("task", j.name))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("task panicked", slog.Any("error", fmt.Errorf("%v", rec)))
			r.metrics.Tasks.WithLabelValues(j.name, metrics.TaskPanicked).Inc()
		}
	}()

	if err := j.task(r.ctx); err != nil {
		logger.Error("task failed", slog.Any("error", err))
		r.metrics.Tasks.WithLabelValues(j.name, metrics.TaskFailed).Inc()
		return
	}
	r.metrics.Tasks.WithLabelValues(j.name, metrics.TaskSucceeded).Inc()
}

// Shutdown перестает принимать задачи и ждет, пока воркеры разберут очередь.
// Если ctx истек раньше, выполняющиеся задачи отменяются, а оставшиеся теряются.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerStopped
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		r.log.Warn("shutdown deadline exceeded, pending tasks are lost")
		return ctx.Err()
	}
}
