package gateway

import (
	"context"
	"errors"
	"log/slog"

	"memedex/internal/broadcast"
	"memedex/internal/catalog"
	"memedex/internal/logging"
)

// ErrInvalidPayload marks a callback whose payload failed validation.
var ErrInvalidPayload = errors.New("invalid callback payload")

// Receiver handles the worker's inbound callbacks. Transitions are dispatched
// on the declared status, never on arrival order, and a callback that no
// longer applies (terminal item, unknown item) is ignored rather than failed.
type Receiver struct {
	store  *catalog.Store
	hub    *broadcast.Hub
	logger *slog.Logger
}

// NewReceiver wires the callback receiver.
func NewReceiver(store *catalog.Store, hub *broadcast.Hub, logger *slog.Logger) *Receiver {
	return &Receiver{
		store:  store,
		hub:    hub,
		logger: logging.WithComponent(logger, "callbacks"),
	}
}

// OnStatus applies a worker status callback.
func (r *Receiver) OnStatus(ctx context.Context, itemID int64, code int) error {
	if itemID <= 0 {
		return ErrInvalidPayload
	}
	status, ok := catalog.StatusFromCode(code)
	if !ok {
		return ErrInvalidPayload
	}

	var (
		applied bool
		err     error
	)
	switch status {
	case catalog.StatusProcessing:
		applied, err = r.store.MarkProcessing(ctx, itemID)
	case catalog.StatusDone:
		applied, err = r.store.MarkDone(ctx, itemID)
	case catalog.StatusFailed:
		applied, err = r.store.MarkFailed(ctx, itemID, "")
	default:
		r.logger.Debug("ignoring worker status callback",
			logging.ItemID(itemID), logging.String("status", status.String()))
		return nil
	}
	if err != nil {
		return err
	}
	if !applied {
		r.logger.Debug("stale status callback ignored",
			logging.ItemID(itemID), logging.String("status", status.String()))
		return nil
	}
	if r.hub != nil {
		r.hub.Publish(broadcast.StatusEvent(itemID, status))
	}
	return nil
}

// OnResult stores a worker text result. For items that have already failed or
// are being removed, the text is failure detail and lands in the error
// message instead of the description, preserving the invariant that a
// non-empty description belongs to a completed caption.
func (r *Receiver) OnResult(ctx context.Context, itemID int64, text string) error {
	if itemID <= 0 {
		return ErrInvalidPayload
	}
	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		r.logger.Warn("result callback for unknown item", logging.ItemID(itemID))
		return nil
	}

	switch item.Status {
	case catalog.StatusFailed, catalog.StatusRemoving:
		_, err = r.store.SetErrorMessage(ctx, itemID, text)
		return err
	default:
		if _, err := r.store.SetDescription(ctx, itemID, text); err != nil {
			return err
		}
		if r.hub != nil {
			r.hub.Publish(broadcast.DescriptionEvent(itemID, text))
		}
		return nil
	}
}
