package bulkops

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"memedex/internal/catalog"
	"memedex/internal/logging"
)

// ErrNoOperation indicates the session has no outstanding bulk operation
// matching the requested identifier.
var ErrNoOperation = errors.New("no outstanding bulk operation")

// Submitter is the slice of the gateway service the coordinator needs.
type Submitter interface {
	Submit(ctx context.Context, itemID int64, model string) (bool, error)
	Cancel(ctx context.Context, itemID int64) (bool, error)
}

// Progress reports how much of one operation's snapshot has finished.
type Progress struct {
	OperationID string
	Counts      map[string]int
	Total       int
	IsComplete  bool
	StartedAt   int64
}

// Coordinator owns the start/status/cancel protocol for bulk operations.
type Coordinator struct {
	store     *catalog.Store
	submitter Submitter
	logger    *slog.Logger
}

// NewCoordinator wires the coordinator.
func NewCoordinator(store *catalog.Store, submitter Submitter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		submitter: submitter,
		logger:    logging.WithComponent(logger, "bulkops"),
	}
}

// Start evaluates the filter once, snapshots the matching identifiers, and
// submits a job for every snapshotted item not already in flight. Individual
// submission failures are routine: the item rolls back to not_started (the
// gateway's responsibility) and the batch continues. An empty filter result
// yields a zero-item operation and nothing is persisted or submitted.
func (c *Coordinator) Start(ctx context.Context, sessionToken string, filter catalog.Filter, model string) (*Record, error) {
	ids, err := c.store.SelectIDs(ctx, filter)
	if err != nil {
		return nil, err
	}

	record := &Record{
		OperationID:  uuid.NewString(),
		TotalCount:   len(ids),
		StartedAt:    time.Now().Unix(),
		ItemIDs:      ids,
		FilterParams: ParamsFromFilter(filter),
	}
	if len(ids) == 0 {
		return record, nil
	}

	statuses, err := c.store.StatusesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	submitted, skipped, failed := 0, 0, 0
	for _, id := range ids {
		if statuses[id].InFlight() {
			skipped++
			continue
		}
		ok, err := c.submitter.Submit(ctx, id, model)
		switch {
		case err != nil:
			failed++
			c.logger.Warn("bulk submission failed for item, continuing",
				logging.ItemID(id), logging.Error(err))
		case ok:
			submitted++
		default:
			skipped++
		}
	}

	payload, err := record.Encode()
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveBulkOperation(ctx, sessionToken, payload); err != nil {
		return nil, err
	}

	c.logger.Info("bulk operation started",
		logging.String(logging.FieldOperation, record.OperationID),
		logging.String(logging.FieldSession, sessionToken),
		logging.Int("total", record.TotalCount),
		logging.Int("submitted", submitted),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
	)
	return record, nil
}

// Status recomputes progress from the current statuses of exactly the
// snapshotted identifiers. Identifiers stuck at not_started count as
// incomplete rather than falling out of the denominator. When every
// identifier is terminal the session record is deleted as a side effect.
func (c *Coordinator) Status(ctx context.Context, sessionToken, operationID string) (*Progress, error) {
	record, err := c.load(ctx, sessionToken, operationID)
	if err != nil {
		return nil, err
	}

	statuses, err := c.store.StatusesByIDs(ctx, record.ItemIDs)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(catalog.AllStatuses()))
	for _, status := range catalog.AllStatuses() {
		counts[status.String()] = 0
	}
	complete := true
	for _, id := range record.ItemIDs {
		status, known := statuses[id]
		if !known {
			// Deleted externally mid-operation; treat as terminal so the
			// operation can still finish.
			counts[catalog.StatusFailed.String()]++
			continue
		}
		counts[status.String()]++
		if !status.Terminal() {
			complete = false
		}
	}

	if complete {
		if err := c.store.DeleteBulkOperation(ctx, sessionToken); err != nil {
			return nil, err
		}
		c.logger.Info("bulk operation complete",
			logging.String(logging.FieldOperation, record.OperationID),
			logging.String(logging.FieldSession, sessionToken))
	}

	return &Progress{
		OperationID: record.OperationID,
		Counts:      counts,
		Total:       record.TotalCount,
		IsComplete:  complete,
		StartedAt:   record.StartedAt,
	}, nil
}

// Cancel requests cancellation for every snapshotted identifier still
// non-terminal, then deletes the session record regardless of individual
// outcomes. It returns the number of items whose cancellation took effect.
func (c *Coordinator) Cancel(ctx context.Context, sessionToken, operationID string) (int, error) {
	record, err := c.load(ctx, sessionToken, operationID)
	if err != nil {
		return 0, err
	}

	statuses, err := c.store.StatusesByIDs(ctx, record.ItemIDs)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range record.ItemIDs {
		status, known := statuses[id]
		if !known || status.Terminal() {
			continue
		}
		ok, err := c.submitter.Cancel(ctx, id)
		if err != nil {
			c.logger.Warn("bulk cancel failed for item, continuing",
				logging.ItemID(id), logging.Error(err))
			continue
		}
		if ok {
			cancelled++
		}
	}

	if err := c.store.DeleteBulkOperation(ctx, sessionToken); err != nil {
		return cancelled, err
	}
	c.logger.Info("bulk operation cancelled",
		logging.String(logging.FieldOperation, record.OperationID),
		logging.String(logging.FieldSession, sessionToken),
		logging.Int("cancelled", cancelled),
	)
	return cancelled, nil
}

func (c *Coordinator) load(ctx context.Context, sessionToken, operationID string) (*Record, error) {
	payload, found, err := c.store.LoadBulkOperation(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoOperation
	}
	record, err := DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if operationID != "" && record.OperationID != operationID {
		return nil, ErrNoOperation
	}
	return record, nil
}
