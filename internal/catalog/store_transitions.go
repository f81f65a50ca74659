package catalog

import (
	"context"
	"fmt"
	"time"
)

// Every transition below is a single guarded UPDATE: the WHERE clause encodes
// the legal source states, so a transition that no longer applies (a stale
// callback, a cancel racing a completion) simply matches zero rows. The
// boolean result reports whether the transition took effect.

func (s *Store) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func nowStamp() string {
	return storedTime(time.Now())
}

// MarkInQueue moves an item into the queue when a job submission begins.
func (s *Store) MarkInQueue(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusInQueue, nowStamp(), id, StatusNotStarted,
	)
	if err != nil {
		return false, fmt.Errorf("mark in_queue: %w", err)
	}
	return applied, nil
}

// MarkProcessing records the worker picking the item's job off the queue.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, nowStamp(), id, StatusInQueue,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	return applied, nil
}

// MarkDone records job completion. A done callback may legally arrive while
// the item is still in_queue because status and result callbacks carry no
// ordering guarantee.
func (s *Store) MarkDone(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusDone, nowStamp(), id, StatusInQueue, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark done: %w", err)
	}
	return applied, nil
}

// MarkFailed records a permanent job failure.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, nullableString(message), nowStamp(), id, StatusInQueue, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return applied, nil
}

// MarkRemoving flags an in-flight item whose cancellation was requested.
func (s *Store) MarkRemoving(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusRemoving, nowStamp(), id, StatusInQueue, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark removing: %w", err)
	}
	return applied, nil
}

// ResetFromRemoving completes a cancellation once the worker acknowledged it.
func (s *Store) ResetFromRemoving(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusNotStarted, nowStamp(), id, StatusRemoving,
	)
	if err != nil {
		return false, fmt.Errorf("reset from removing: %w", err)
	}
	return applied, nil
}

// RollbackSubmission reverts an item whose job submission failed outright so
// it is never left at in_queue with no real job behind it.
func (s *Store) RollbackSubmission(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusNotStarted, nowStamp(), id, StatusInQueue,
	)
	if err != nil {
		return false, fmt.Errorf("rollback submission: %w", err)
	}
	return applied, nil
}

// ResetForRegenerate prepares a done item for a fresh captioning request.
// The prior description is cleared in the same statement so the item can
// never be observed at not_started with a stale result attached.
func (s *Store) ResetForRegenerate(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, description = NULL, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusNotStarted, nowStamp(), id, StatusDone,
	)
	if err != nil {
		return false, fmt.Errorf("reset for regenerate: %w", err)
	}
	return applied, nil
}

// ResetForRetry moves a failed item back to not_started on an explicit user
// retry, clearing the failure artifacts.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET status = ?, description = NULL, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusNotStarted, nowStamp(), id, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("reset for retry: %w", err)
	}
	return applied, nil
}

// SetErrorMessage records failure detail delivered out of band by the worker.
func (s *Store) SetErrorMessage(ctx context.Context, id int64, message string) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(message), nowStamp(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set error message: %w", err)
	}
	return applied, nil
}

// SetDescription stores the text result delivered by the worker. It is kept
// separate from MarkDone because result and status callbacks arrive
// independently and in no guaranteed order.
func (s *Store) SetDescription(ctx context.Context, id int64, text string) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE items SET description = ?, updated_at = ? WHERE id = ?`,
		nullableString(text), nowStamp(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set description: %w", err)
	}
	return applied, nil
}
