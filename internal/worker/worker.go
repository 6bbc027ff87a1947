package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
)

// Drainer runs one pass over the queue. Implemented by *pipeline.Pipeline.
type Drainer interface {
	Drain(ctx context.Context) error
}

// RecoveryStore is the queue surface the startup sweep needs.
type RecoveryStore interface {
	ResetStaleProcessing(ctx context.Context) (int64, error)
	CleanupStaleLocks(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context) (int64, error)
}

// Worker owns the polling loop: crash recovery at startup, a drain per poll
// tick, and on-demand drains via Kick. Draining is single-flight per worker
// instance; a cycle that is still running when the next tick arrives simply
// wins and the tick is skipped.
type Worker struct {
	store      RecoveryStore
	drainer    Drainer
	logger     *slog.Logger
	interval   time.Duration
	errorRetry time.Duration

	draining atomic.Bool
	kick     chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a worker from the queue store and a drainer.
func New(store RecoveryStore, drainer Drainer, cfg *config.Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	errorRetry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	return &Worker{
		store:      store,
		drainer:    drainer,
		logger:     logging.NewComponentLogger(logger, "worker"),
		interval:   interval,
		errorRetry: errorRetry,
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the polling loop. The first call runs the crash-recovery
// sweep and an immediate drain; subsequent calls while running are no-ops.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	w.recover(runCtx)

	go w.run(runCtx)
	return nil
}

// Stop cancels the loop and waits for any in-flight cycle to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Kick requests a drain without waiting for the next poll tick. Safe to call
// from any goroutine; kicks coalesce while a drain is pending.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// RunCycle executes one drain pass unless one is already in flight. Errors
// and panics are logged and swallowed so the polling loop survives them; the
// returned flag reports whether the cycle failed so the loop can retry early.
func (w *Worker) RunCycle(ctx context.Context) (failed bool) {
	if !w.draining.CompareAndSwap(false, true) {
		return false
	}
	defer w.draining.Store(false)

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("drain cycle panicked", logging.Any("panic", r))
			failed = true
		}
	}()

	if err := w.drainer.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("drain cycle failed", logging.Error(err))
		return true
	}
	return false
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			w.runOnce(ctx)
		case <-ticker.C:
			w.runOnce(ctx)
			w.cleanup(ctx)
		}
	}
}

// runOnce executes a cycle and, when it fails, kicks again after the error
// retry interval instead of waiting out the full poll interval.
func (w *Worker) runOnce(ctx context.Context) {
	if failed := w.RunCycle(ctx); failed && w.errorRetry > 0 && w.errorRetry < w.interval {
		// A late Kick after Stop only fills the buffered channel; harmless.
		time.AfterFunc(w.errorRetry, w.Kick)
	}
}

// recover runs the startup sweep: processing items with a stale or missing
// lock go back to queued before any new work is claimed.
func (w *Worker) recover(ctx context.Context) {
	reset, err := w.store.ResetStaleProcessing(ctx)
	if err != nil {
		w.logger.Error("startup recovery failed; stuck items may remain", logging.Error(err))
		return
	}
	if reset > 0 {
		w.logger.Info("recovered interrupted items", logging.Int64("count", reset))
	}

	removed, err := w.store.CleanupStaleLocks(ctx)
	if err != nil {
		w.logger.Warn("stale lock cleanup failed", logging.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("removed stale locks", logging.Int64("count", removed))
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	removed, err := w.store.Cleanup(ctx)
	if err != nil {
		w.logger.Warn("retention cleanup failed", logging.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("pruned old queue items", logging.Int64("count", removed))
	}
}

// Draining reports whether a cycle is currently in flight.
func (w *Worker) Draining() bool {
	return w.draining.Load()
}

var _ RecoveryStore = (*queue.Store)(nil)
