package workerd

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

// Worker drains the job queue sequentially: one job in flight at a time, in
// submission order. That bound is deliberate; it keeps ordering reasoning
// trivial for the daemon side.
type Worker struct {
	queue        *JobQueue
	notifier     *Notifier
	captioner    Captioner
	pollInterval time.Duration
	maxRetries   int
	retryDelays  []time.Duration
	logger       *slog.Logger

	mu             sync.Mutex
	currentItem    int64
	discardCurrent bool

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker wires the processing loop.
func NewWorker(cfg *config.Config, queue *JobQueue, notifier *Notifier, captioner Captioner, logger *slog.Logger) *Worker {
	delays := make([]time.Duration, 0, len(cfg.Worker.RetryDelays))
	for _, seconds := range cfg.Worker.RetryDelays {
		delays = append(delays, time.Duration(seconds)*time.Second)
	}
	if len(delays) == 0 {
		delays = []time.Duration{10 * time.Second}
	}
	poll := time.Duration(cfg.Worker.PollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Worker{
		queue:        queue,
		notifier:     notifier,
		captioner:    captioner,
		pollInterval: poll,
		maxRetries:   cfg.Worker.MaxRetries,
		retryDelays:  delays,
		logger:       logging.WithComponent(logger, "worker"),
	}
}

// Start launches the processing loop.
func (w *Worker) Start(ctx context.Context) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)
	w.logger.Info("worker started, ready to process jobs")
	return nil
}

// Stop terminates the loop and waits for the in-flight job to settle.
func (w *Worker) Stop() {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.runMu.Unlock()

	cancel()
	w.wg.Wait()
}

// CancelItem drops queued jobs for the item and, when the item's job is
// currently in flight, marks its eventual outcome for discard. Safe to call
// for items with no matching job.
func (w *Worker) CancelItem(ctx context.Context, itemID int64) error {
	removed, err := w.queue.RemoveByItem(ctx, itemID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.currentItem == itemID {
		w.discardCurrent = true
	}
	w.mu.Unlock()

	w.logger.Info("cancel handled", logging.ItemID(itemID), logging.Int64("removed", removed))
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		sleep := w.pollInterval
		job, err := w.queue.Next(ctx)
		switch {
		case err != nil:
			w.logger.Error("reading job queue failed", logging.Error(err))
		case job != nil:
			sleep = w.processJob(ctx, job)
		}

		if sleep <= 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// processJob handles one job end to end and returns how long the loop should
// sleep before the next poll (zero means check the queue immediately).
func (w *Worker) processJob(ctx context.Context, job *Job) time.Duration {
	w.mu.Lock()
	w.currentItem = job.ItemID
	w.discardCurrent = false
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.currentItem = 0
		w.discardCurrent = false
		w.mu.Unlock()
	}()

	w.notifier.SendStatus(ctx, job.ItemID, int(catalog.StatusProcessing))
	w.logger.Info("processing job",
		logging.ItemID(job.ItemID),
		logging.String("model", job.Model),
		logging.Int("retry_count", job.RetryCount),
	)

	caption, err := w.captioner.Caption(ctx, job.SourcePath, job.Model)

	if w.discarded() {
		// The daemon cancelled this item mid-flight; drop the outcome.
		w.logger.Info("discarding cancelled job result", logging.ItemID(job.ItemID))
		w.deleteJob(ctx, job)
		return 0
	}

	if err == nil {
		w.notifier.SendResult(ctx, job.ItemID, caption)
		w.notifier.SendStatus(ctx, job.ItemID, int(catalog.StatusDone))
		w.logger.Info("finished job", logging.ItemID(job.ItemID))
		w.deleteJob(ctx, job)
		return 0
	}

	if IsPermanent(err) {
		w.failJob(ctx, job, err.Error())
		return 0
	}

	retryCount, retryErr := w.queue.IncrementRetry(ctx, job.ID)
	if retryErr != nil {
		w.logger.Error("recording retry failed", logging.ItemID(job.ItemID), logging.Error(retryErr))
		return w.pollInterval
	}
	if retryCount >= w.maxRetries {
		w.failJob(ctx, job, fmt.Sprintf("max retries (%d) exceeded, last error: %v", w.maxRetries, err))
		return 0
	}

	delayIndex := retryCount - 1
	if delayIndex >= len(w.retryDelays) {
		delayIndex = len(w.retryDelays) - 1
	}
	delay := w.retryDelays[delayIndex]
	w.logger.Warn("job failed, will retry",
		logging.ItemID(job.ItemID),
		logging.Int("attempt", retryCount),
		logging.Int("max_retries", w.maxRetries),
		logging.Error(err),
	)
	return delay
}

// failJob notifies the daemon of a permanent failure and drops the job.
// Status goes first, then the error detail as the result text, matching how
// the receiver files result text for failed items.
func (w *Worker) failJob(ctx context.Context, job *Job, message string) {
	w.logger.Error("job permanently failed", logging.ItemID(job.ItemID), logging.String("reason", message))
	w.notifier.SendStatus(ctx, job.ItemID, int(catalog.StatusFailed))
	w.notifier.SendResult(ctx, job.ItemID, message)
	w.deleteJob(ctx, job)
}

func (w *Worker) deleteJob(ctx context.Context, job *Job) {
	if err := w.queue.Delete(ctx, job.ID); err != nil {
		w.logger.Error("removing job from queue failed", logging.ItemID(job.ItemID), logging.Error(err))
	}
}

func (w *Worker) discarded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.discardCurrent
}
