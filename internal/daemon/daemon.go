package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"patrol/internal/classifier"
	"patrol/internal/config"
	"patrol/internal/dispatch"
	"patrol/internal/imagestore"
	"patrol/internal/logging"
	"patrol/internal/metrics"
	"patrol/internal/notify"
	"patrol/internal/server"
	"patrol/internal/store"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store      *store.Store
	pool       *dispatch.Pool
	dispatcher *dispatch.Dispatcher
	server     *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	APIBind      string
	Workers      int
	PendingJobs  int
	QueueDepth   int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with all dependencies wired but nothing started.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cl := classifier.NewClient(classifier.Config{
		APIKey:         cfg.Classifier.APIKey,
		BaseURL:        cfg.Classifier.BaseURL,
		Model:          cfg.Classifier.Model,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
	})
	notifier := notify.NewService(cfg, logger)
	pool := dispatch.NewPool(cfg.Dispatch.Workers)
	dispatcher := dispatch.New(st, imagestore.New(cfg.ImagesDir()), cl, notifier, pool, logger)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      st,
		pool:       pool,
		dispatcher: dispatcher,
		server:     server.New(cfg, st, dispatcher, notifier, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, purges stale queue entries, and brings
// up the worker pool and HTTP API. Cancelling ctx shuts down the API server;
// the worker pool keeps draining until Stop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another patrol daemon instance is already running")
	}

	purgeAge := time.Duration(d.cfg.Dispatch.QueuePurgeHours) * time.Hour
	if purged, err := d.store.PurgeStale(ctx, purgeAge); err != nil {
		d.logger.Warn("purge stale queue entries", logging.Error(err))
	} else if purged > 0 {
		d.logger.Info("purged stale queue entries", logging.Int64("count", purged))
	}
	if depth, err := d.store.QueueDepth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.pool.Start(poolCtx)

	if err := d.server.Start(ctx); err != nil {
		d.pool.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("patrol daemon started",
		logging.String("bind", d.server.Addr()),
		logging.Int("workers", d.cfg.Dispatch.Workers),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API, drains in-flight inspections, closes the store,
// and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.Stop()
	d.pool.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("close store", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("patrol daemon stopped")
}

// Close releases resources without requiring a prior Start.
func (d *Daemon) Close() error {
	if d.running.Load() {
		d.Stop()
		return nil
	}
	return d.store.Close()
}

// Addr reports the bound API address once the daemon is running.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Status reports current runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		APIBind:      d.cfg.Paths.APIBind,
		Workers:      d.cfg.Dispatch.Workers,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if d.running.Load() {
		st.APIBind = d.server.Addr()
		st.PendingJobs = d.pool.Pending()
		if depth, err := d.store.QueueDepth(ctx); err == nil {
			st.QueueDepth = depth
		}
	}
	return st
}
