package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"memedex/internal/broadcast"
	"memedex/internal/bulkops"
	"memedex/internal/catalog"
	"memedex/internal/config"
	"memedex/internal/gateway"
	"memedex/internal/logging"
	"memedex/internal/scanner"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *catalog.Store

	hub       *broadcast.Hub
	gateway   *gateway.Service
	receiver  *gateway.Receiver
	bulk      *bulkops.Coordinator
	scheduler *scanner.Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	CatalogDBPath string
	LockFilePath  string
	Stats         catalog.Stats
}

// New constructs a daemon with all subsystems wired but not started.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	hub := broadcast.NewHub()
	client := gateway.NewClient(cfg)
	svc := gateway.NewService(cfg, store, client, hub, logger)
	receiver := gateway.NewReceiver(store, hub, logger)
	bulk := bulkops.NewCoordinator(store, svc, logger)

	importer := scanner.NewImporter(store, logger)
	sched := scanner.New(cfg, store, importer.Scan, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "memedexd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		hub:       hub,
		gateway:   svc,
		receiver:  receiver,
		bulk:      bulk,
		scheduler: sched,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another memedex daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		d.releaseOnStartFailure()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("memedex daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseOnStartFailure() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.scheduler.Stop()
	d.hub.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("memedex daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.ItemStats(ctx)
	if err != nil {
		d.logger.Warn("reading item stats failed", logging.Error(err))
	}
	return Status{
		Running:       d.running.Load(),
		CatalogDBPath: filepath.Join(d.cfg.Paths.DataDir, "catalog.db"),
		LockFilePath:  d.lockPath,
		Stats:         stats,
	}
}
