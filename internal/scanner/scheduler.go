package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"memedex/internal/catalog"
	"memedex/internal/config"
	"memedex/internal/logging"
)

// ScanFunc performs one scan of a watched source. The default implementation
// is Importer.ScanSource; tests substitute their own.
type ScanFunc func(ctx context.Context, source *catalog.WatchedSource) error

// ErrSourceBusy indicates a manual scan lost the claim race against another
// scan of the same source.
var ErrSourceBusy = errors.New("source scan already in progress")

// ErrSourceUnknown indicates a scan was requested for a source id that does
// not exist.
var ErrSourceUnknown = errors.New("unknown source")

// Scheduler runs the recurring auto-scan loop.
type Scheduler struct {
	store     *catalog.Store
	scan      ScanFunc
	interval  time.Duration
	threshold int
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires the scheduler.
func New(cfg *config.Config, store *catalog.Store, scan ScanFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		scan:      scan,
		interval:  cfg.ScanInterval(),
		threshold: cfg.Scan.FailureThreshold,
		logger:    logging.WithComponent(logger, "scanner"),
	}
}

// Start launches the background loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop terminates the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// run re-arms unconditionally: whatever happens inside a tick, the next tick
// is scheduled. Breakers protect individual sources, not the loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.RunTick(ctx, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// RunTick scans every due source once. A failure in one source never aborts
// processing of the others.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) {
	sources, err := s.store.DueSources(ctx, now, s.threshold)
	if err != nil {
		s.logger.Error("listing due sources failed", logging.Error(err))
		return
	}
	for _, source := range sources {
		if ctx.Err() != nil {
			return
		}
		s.scanOne(ctx, source, now)
	}
}

// TriggerScan runs a manual scan immediately, bypassing the schedule and
// breaker checks. A successful manual scan closes the source's breaker
// because CompleteScan resets the failure counter.
func (s *Scheduler) TriggerScan(ctx context.Context, sourceID int64) error {
	source, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return ErrSourceUnknown
	}

	claimed, err := s.store.BeginScan(ctx, sourceID)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrSourceBusy
	}

	if err := s.runScan(ctx, source); err != nil {
		if _, failErr := s.store.FailScan(ctx, sourceID); failErr != nil {
			s.logger.Error("recording manual scan failure failed",
				logging.SourceID(sourceID), logging.Error(failErr))
		}
		return err
	}
	s.logger.Info("manual scan complete",
		logging.SourceID(sourceID),
		logging.Bool("auto_scan", source.Schedulable()),
	)
	return s.store.CompleteScan(ctx, sourceID, nextDue(source, time.Now()))
}

func (s *Scheduler) scanOne(ctx context.Context, source *catalog.WatchedSource, now time.Time) {
	claimed, err := s.store.BeginScan(ctx, source.ID)
	if err != nil {
		s.logger.Error("claiming source for scan failed",
			logging.SourceID(source.ID), logging.Error(err))
		return
	}
	if !claimed {
		return
	}

	if err := s.runScan(ctx, source); err != nil {
		count, failErr := s.store.FailScan(ctx, source.ID)
		if failErr != nil {
			s.logger.Error("recording scan failure failed",
				logging.SourceID(source.ID), logging.Error(failErr))
			return
		}
		if count >= s.threshold {
			s.logger.Warn("scan breaker tripped; automatic scans disabled for source",
				logging.SourceID(source.ID),
				logging.Int("consecutive_failures", count),
				logging.Error(err),
			)
		} else {
			s.logger.Warn("scan failed",
				logging.SourceID(source.ID),
				logging.Int("consecutive_failures", count),
				logging.Error(err),
			)
		}
		return
	}

	if err := s.store.CompleteScan(ctx, source.ID, nextDue(source, now)); err != nil {
		s.logger.Error("recording scan success failed",
			logging.SourceID(source.ID), logging.Error(err))
	}
}

// runScan is the failure boundary around one source's unit of work.
func (s *Scheduler) runScan(ctx context.Context, source *catalog.WatchedSource) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()
	return s.scan(ctx, source)
}

func nextDue(source *catalog.WatchedSource, now time.Time) *time.Time {
	if source.AutoScanFrequency == nil {
		return nil
	}
	next := now.UTC().Add(time.Duration(*source.AutoScanFrequency) * time.Second)
	return &next
}
