package bulkops_test

import (
	"context"
	"errors"
	"testing"

	"memedex/internal/bulkops"
	"memedex/internal/catalog"
	"memedex/internal/logging"
	"memedex/internal/testsupport"
)

const session = "1b9e4e9e-2f6d-44a0-8f56-0d4a31b6ce77"

type fakeSubmitter struct {
	store     *catalog.Store
	submitted []int64
	cancelled []int64
	failIDs   map[int64]bool
}

func (f *fakeSubmitter) Submit(ctx context.Context, itemID int64, model string) (bool, error) {
	if f.failIDs[itemID] {
		return false, errors.New("worker unavailable")
	}
	applied, err := f.store.MarkInQueue(ctx, itemID)
	if err != nil {
		return false, err
	}
	if applied {
		f.submitted = append(f.submitted, itemID)
	}
	return applied, nil
}

func (f *fakeSubmitter) Cancel(ctx context.Context, itemID int64) (bool, error) {
	applied, err := f.store.MarkRemoving(ctx, itemID)
	if err != nil || !applied {
		return false, err
	}
	if _, err := f.store.ResetFromRemoving(ctx, itemID); err != nil {
		return false, err
	}
	f.cancelled = append(f.cancelled, itemID)
	return true, nil
}

func newCoordinator(t *testing.T) (*bulkops.Coordinator, *catalog.Store, *fakeSubmitter, int64) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := testsupport.NewSource(t, store, t.TempDir(), nil)
	submitter := &fakeSubmitter{store: store, failIDs: map[int64]bool{}}
	coordinator := bulkops.NewCoordinator(store, submitter, logging.NewNop())
	return coordinator, store, submitter, source.ID
}

func TestStartSnapshotsAndSubmits(t *testing.T) {
	coordinator, _, submitter, sourceID := newCoordinator(t)
	ctx := context.Background()
	store := submitter.store

	var ids []int64
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		ids = append(ids, testsupport.NewItem(t, store, sourceID, name).ID)
	}

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.TotalCount != 3 || len(record.ItemIDs) != 3 {
		t.Fatalf("record = %+v, want 3 snapshotted ids", record)
	}
	if len(submitter.submitted) != 3 {
		t.Fatalf("submitted %d jobs, want 3", len(submitter.submitted))
	}
	_ = ids
}

func TestStartSkipsInFlightItems(t *testing.T) {
	coordinator, store, submitter, sourceID := newCoordinator(t)
	ctx := context.Background()

	busy := testsupport.NewItem(t, store, sourceID, "busy.jpg")
	fresh := testsupport.NewItem(t, store, sourceID, "fresh.jpg")
	if _, err := store.MarkInQueue(ctx, busy.ID); err != nil {
		t.Fatalf("MarkInQueue: %v", err)
	}

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// In-flight items stay in the snapshot denominator but get no new job.
	if record.TotalCount != 2 {
		t.Fatalf("total = %d, want 2", record.TotalCount)
	}
	if len(submitter.submitted) != 1 || submitter.submitted[0] != fresh.ID {
		t.Fatalf("submitted = %v, want only item %d", submitter.submitted, fresh.ID)
	}
}

func TestStartContinuesPastSubmissionFailures(t *testing.T) {
	coordinator, store, submitter, sourceID := newCoordinator(t)
	ctx := context.Background()

	bad := testsupport.NewItem(t, store, sourceID, "bad.jpg")
	good := testsupport.NewItem(t, store, sourceID, "good.jpg")
	submitter.failIDs[bad.ID] = true

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.TotalCount != 2 {
		t.Fatalf("total = %d, want failed submissions to stay in the snapshot", record.TotalCount)
	}
	if len(submitter.submitted) != 1 || submitter.submitted[0] != good.ID {
		t.Fatalf("submitted = %v, want only item %d", submitter.submitted, good.ID)
	}
}

func TestStartWithEmptyFilterResultPersistsNothing(t *testing.T) {
	coordinator, store, _, _ := newCoordinator(t)
	ctx := context.Background()

	record, err := coordinator.Start(ctx, session, catalog.Filter{NameContains: "no-such-item"}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.TotalCount != 0 {
		t.Fatalf("total = %d, want 0", record.TotalCount)
	}
	if _, found, err := store.LoadBulkOperation(ctx, session); err != nil || found {
		t.Fatalf("zero-item operation should not persist a record (found=%v err=%v)", found, err)
	}
}

func TestStatusCountsSnapshotOnly(t *testing.T) {
	coordinator, store, _, sourceID := newCoordinator(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"} {
		ids = append(ids, testsupport.NewItem(t, store, sourceID, name).ID)
	}

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.TotalCount != 5 {
		t.Fatalf("total = %d, want 5", record.TotalCount)
	}

	// An item created after the snapshot must never enter the accounting,
	// even though it matches the original filter.
	testsupport.NewItem(t, store, sourceID, "late.jpg")

	for _, id := range ids[:3] {
		if _, err := store.MarkDone(ctx, id); err != nil {
			t.Fatalf("MarkDone: %v", err)
		}
	}
	for _, id := range ids[3:] {
		if _, err := store.MarkFailed(ctx, id, "boom"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}

	progress, err := coordinator.Status(ctx, session, record.OperationID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if progress.Counts["done"] != 3 || progress.Counts["failed"] != 2 {
		t.Fatalf("counts = %v, want done:3 failed:2", progress.Counts)
	}
	sum := 0
	for _, count := range progress.Counts {
		sum += count
	}
	if sum != 5 {
		t.Fatalf("counts sum to %d, want the snapshot size 5", sum)
	}
	if !progress.IsComplete {
		t.Fatal("operation with all-terminal items should be complete")
	}

	// Completion deletes the session record lazily.
	if _, err := coordinator.Status(ctx, session, record.OperationID); !errors.Is(err, bulkops.ErrNoOperation) {
		t.Fatalf("second Status err = %v, want ErrNoOperation after cleanup", err)
	}
}

func TestStatusTreatsDeletedItemsAsTerminal(t *testing.T) {
	coordinator, store, _, sourceID := newCoordinator(t)
	ctx := context.Background()

	kept := testsupport.NewItem(t, store, sourceID, "kept.jpg")
	testsupport.NewItem(t, store, sourceID, "doomed.jpg")

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := store.DeleteItem(ctx, record.ItemIDs[1]); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := store.MarkDone(ctx, kept.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	progress, err := coordinator.Status(ctx, session, record.OperationID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !progress.IsComplete {
		t.Fatal("operation should complete even when a snapshotted item was deleted")
	}
	if progress.Counts["failed"] != 1 {
		t.Fatalf("counts = %v, want deleted item in the failed bucket", progress.Counts)
	}
}

func TestStatusWrongOperationID(t *testing.T) {
	coordinator, store, _, sourceID := newCoordinator(t)
	ctx := context.Background()

	testsupport.NewItem(t, store, sourceID, "x.jpg")
	if _, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := coordinator.Status(ctx, session, "not-the-operation"); !errors.Is(err, bulkops.ErrNoOperation) {
		t.Fatalf("err = %v, want ErrNoOperation for a mismatched id", err)
	}
}

func TestCancelSkipsTerminalAndDeletesRecord(t *testing.T) {
	coordinator, store, submitter, sourceID := newCoordinator(t)
	ctx := context.Background()

	finished := testsupport.NewItem(t, store, sourceID, "finished.jpg")
	pending := testsupport.NewItem(t, store, sourceID, "pending.jpg")

	record, err := coordinator.Start(ctx, session, catalog.Filter{SourceID: sourceID}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := store.MarkDone(ctx, finished.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	cancelled, err := coordinator.Cancel(ctx, session, record.OperationID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("cancelled = %d, want 1 (the pending item only)", cancelled)
	}
	if len(submitter.cancelled) != 1 || submitter.cancelled[0] != pending.ID {
		t.Fatalf("cancelled items = %v, want only %d", submitter.cancelled, pending.ID)
	}

	got, err := store.GetItem(ctx, finished.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusDone {
		t.Fatalf("finished item status = %s, want done to survive bulk cancel", got.Status)
	}

	if _, found, err := store.LoadBulkOperation(ctx, session); err != nil || found {
		t.Fatalf("record should be deleted after cancel (found=%v err=%v)", found, err)
	}
}
