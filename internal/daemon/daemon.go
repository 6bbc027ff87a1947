package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/references"
	"easel/internal/worker"
)

// Daemon ties the queue store, the worker loop, and the HTTP API into one
// long-running process guarded by a lock file so only one daemon serves a
// data directory at a time.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	refs   *references.Store
	worker *worker.Worker
	api    *apiServer
	lock   *flock.Flock

	mu      sync.Mutex
	running bool
}

// New wires a daemon. The store, references, and worker are owned by the
// caller; the daemon owns the API server and the instance lock.
func New(cfg *config.Config, store *queue.Store, refs *references.Store, w *worker.Worker, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		store:  store,
		refs:   refs,
		worker: w,
		lock:   flock.New(filepath.Join(cfg.Paths.DataDir, "easeld.lock")),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock, starts the worker, and begins serving the
// API. It fails fast when another daemon already owns the data directory.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	acquired, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another daemon already holds %s", d.lock.Path())
	}

	if err := d.worker.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(ctx); err != nil {
			d.worker.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running = true
	d.logger.Info("daemon started", logging.Int("pid", os.Getpid()))
	return nil
}

// Stop shuts down the API and the worker, then releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	if d.api != nil {
		d.api.stop()
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("instance lock release failed", logging.Error(err))
	}
	d.running = false
	d.logger.Info("daemon stopped")
}

// Addr reports the API listen address, empty until Start succeeds.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status summarizes daemon and queue health.
type Status struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	QueueStats  map[string]int `json:"queue_stats"`
	ActiveLocks int            `json:"active_locks"`
	MaxActive   int            `json:"max_active"`
	Draining    bool           `json:"draining"`
}

// Status gathers the daemon health snapshot served by /api/status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	status := Status{
		Running:   running,
		PID:       os.Getpid(),
		MaxActive: d.store.MaxConcurrent(),
		Draining:  d.worker.Draining(),
	}

	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats failed", logging.Error(err))
	} else {
		status.QueueStats = make(map[string]int, len(stats))
		for s, count := range stats {
			status.QueueStats[string(s)] = count
		}
	}

	locks, err := d.store.ActiveLockCount(ctx)
	if err != nil {
		d.logger.Warn("lock count failed", logging.Error(err))
	} else {
		status.ActiveLocks = locks
	}
	return status
}
