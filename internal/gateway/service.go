package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"memedex/internal/broadcast"
	"memedex/internal/catalog"
	"memedex/internal/config"
	"memedex/internal/logging"
)

// Service orchestrates the submission side of the job lifecycle: it owns the
// in_queue/removing bookkeeping around every outbound worker call so an item
// can never be left claiming a job the worker does not have.
type Service struct {
	store  *catalog.Store
	client *Client
	hub    *broadcast.Hub
	cfg    *config.Config
	logger *slog.Logger
}

// NewService wires the submission service.
func NewService(cfg *config.Config, store *catalog.Store, client *Client, hub *broadcast.Hub, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		client: client,
		hub:    hub,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "gateway"),
	}
}

// Submit queues a captioning job for one item. The boolean reports whether a
// job was actually submitted; an unknown item, an item already in flight, or
// a lost transition race all yield (false, nil) rather than an error.
func (s *Service) Submit(ctx context.Context, itemID int64, model string) (bool, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = s.cfg.Worker.DefaultModel
	}
	if len(s.cfg.Worker.AvailableModels) > 0 && !s.cfg.ModelAllowed(model) {
		return false, fmt.Errorf("model %q is not configured", model)
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		s.logger.Warn("submit requested for unknown item", logging.ItemID(itemID))
		return false, nil
	}

	switch item.Status {
	case catalog.StatusNotStarted:
	case catalog.StatusFailed:
		applied, err := s.store.ResetForRetry(ctx, itemID)
		if err != nil {
			return false, err
		}
		if !applied {
			return false, nil
		}
		s.publishStatus(itemID, catalog.StatusNotStarted)
	default:
		s.logger.Debug("submit skipped", logging.ItemID(itemID), logging.String("status", item.Status.String()))
		return false, nil
	}

	applied, err := s.store.MarkInQueue(ctx, itemID)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	s.publishStatus(itemID, catalog.StatusInQueue)

	source, err := s.store.GetSource(ctx, item.SourceID)
	if err != nil || source == nil {
		s.rollback(ctx, itemID)
		if err != nil {
			return false, err
		}
		return false, fmt.Errorf("item %d references unknown source %d", itemID, item.SourceID)
	}

	req := SubmitRequest{
		ItemID:     itemID,
		SourcePath: filepath.Join(source.Path, item.RelPath),
		ModelID:    model,
	}
	if err := s.client.Submit(ctx, req); err != nil {
		s.logger.Warn("job submission failed, rolling item back",
			logging.ItemID(itemID), logging.Error(err))
		s.rollback(ctx, itemID)
		return false, err
	}
	return true, nil
}

// Cancel requests cancellation of an in-flight job. Cancelling an item in a
// terminal state is a no-op, not an error. The item passes through removing
// and lands back at not_started; if the worker cannot be reached the reset
// happens optimistically with a warning.
func (s *Service) Cancel(ctx context.Context, itemID int64) (bool, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		s.logger.Warn("cancel requested for unknown item", logging.ItemID(itemID))
		return false, nil
	}
	if !item.Status.InFlight() {
		return false, nil
	}

	applied, err := s.store.MarkRemoving(ctx, itemID)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	s.publishStatus(itemID, catalog.StatusRemoving)

	if err := s.client.Cancel(ctx, itemID); err != nil {
		s.logger.Warn("worker cancel failed, resetting item optimistically",
			logging.ItemID(itemID), logging.Error(err))
	}

	if applied, err := s.store.ResetFromRemoving(ctx, itemID); err != nil {
		return false, err
	} else if applied {
		s.publishStatus(itemID, catalog.StatusNotStarted)
	}
	return true, nil
}

// Regenerate clears a done item's result and submits a fresh job. Items in
// other submittable states fall through to a plain Submit.
func (s *Service) Regenerate(ctx context.Context, itemID int64, model string) (bool, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		s.logger.Warn("regenerate requested for unknown item", logging.ItemID(itemID))
		return false, nil
	}
	if item.Status == catalog.StatusDone {
		applied, err := s.store.ResetForRegenerate(ctx, itemID)
		if err != nil {
			return false, err
		}
		if applied {
			s.publishStatus(itemID, catalog.StatusNotStarted)
		}
	}
	return s.Submit(ctx, itemID, model)
}

// QueueDepth proxies the worker's queue length for operational visibility.
func (s *Service) QueueDepth(ctx context.Context) (int, error) {
	return s.client.QueueDepth(ctx)
}

func (s *Service) rollback(ctx context.Context, itemID int64) {
	applied, err := s.store.RollbackSubmission(ctx, itemID)
	if err != nil {
		s.logger.Error("submission rollback failed; item may be stuck in_queue",
			logging.ItemID(itemID), logging.Error(err))
		return
	}
	if applied {
		s.publishStatus(itemID, catalog.StatusNotStarted)
	}
}

func (s *Service) publishStatus(itemID int64, status catalog.Status) {
	if s.hub != nil {
		s.hub.Publish(broadcast.StatusEvent(itemID, status))
	}
}
