package catalog_test

import (
	"context"
	"testing"

	"memedex/internal/catalog"
	"memedex/internal/testsupport"
)

func newStoreWithItem(t *testing.T) (*catalog.Store, *catalog.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := testsupport.NewSource(t, store, t.TempDir(), nil)
	item := testsupport.NewItem(t, store, source.ID, "cats/grumpy.jpg")
	return store, item
}

func mustApply(t *testing.T, name string, applied bool, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if !applied {
		t.Fatalf("%s: transition did not apply", name)
	}
}

func mustReject(t *testing.T, name string, applied bool, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if applied {
		t.Fatalf("%s: transition applied but should have been rejected", name)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := store.MarkInQueue(ctx, item.ID)
	mustApply(t, "MarkInQueue", applied, err)

	applied, err = store.MarkProcessing(ctx, item.ID)
	mustApply(t, "MarkProcessing", applied, err)

	applied, err = store.MarkDone(ctx, item.ID)
	mustApply(t, "MarkDone", applied, err)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
}

func TestDoneDirectlyFromInQueue(t *testing.T) {
	// Status and result callbacks carry no ordering guarantee, so a done
	// callback can overtake the processing one.
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := store.MarkInQueue(ctx, item.ID)
	mustApply(t, "MarkInQueue", applied, err)

	applied, err = store.MarkDone(ctx, item.ID)
	mustApply(t, "MarkDone from in_queue", applied, err)
}

func TestStaleCallbacksAfterTerminal(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.MarkDone(ctx, item.ID))
	mustApply(t, "MarkDone", applied, err)

	applied, err = store.MarkProcessing(ctx, item.ID)
	mustReject(t, "MarkProcessing after done", applied, err)

	applied, err = store.MarkFailed(ctx, item.ID, "late failure")
	mustReject(t, "MarkFailed after done", applied, err)

	applied, err = store.MarkDone(ctx, item.ID)
	mustReject(t, "duplicate MarkDone", applied, err)
}

func TestCancelOfCompletedItemIsNoOp(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.MarkDone(ctx, item.ID))
	mustApply(t, "MarkDone", applied, err)

	applied, err = store.MarkRemoving(ctx, item.ID)
	mustReject(t, "MarkRemoving after done", applied, err)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusDone {
		t.Fatalf("status = %s, want done to survive the cancel", got.Status)
	}
}

func TestCancelFlow(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.MarkProcessing(ctx, item.ID))
	mustApply(t, "MarkProcessing", applied, err)
	applied, err = firstBool(store.MarkRemoving(ctx, item.ID))
	mustApply(t, "MarkRemoving", applied, err)

	// While removing, a completion callback from the worker must not land.
	applied, err = store.MarkDone(ctx, item.ID)
	mustReject(t, "MarkDone while removing", applied, err)

	applied, err = firstBool(store.ResetFromRemoving(ctx, item.ID))
	mustApply(t, "ResetFromRemoving", applied, err)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusNotStarted {
		t.Fatalf("status = %s, want not_started after cancel", got.Status)
	}
}

func TestRollbackSubmission(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.RollbackSubmission(ctx, item.ID))
	mustApply(t, "RollbackSubmission", applied, err)

	// Rollback applies only to in_queue; once processing it must not fire.
	applied, err = firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue again", applied, err)
	applied, err = firstBool(store.MarkProcessing(ctx, item.ID))
	mustApply(t, "MarkProcessing", applied, err)
	applied, err = store.RollbackSubmission(ctx, item.ID)
	mustReject(t, "RollbackSubmission while processing", applied, err)
}

func TestRegenerateClearsDescriptionAtomically(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.MarkDone(ctx, item.ID))
	mustApply(t, "MarkDone", applied, err)
	applied, err = firstBool(store.SetDescription(ctx, item.ID, "a grumpy cat"))
	mustApply(t, "SetDescription", applied, err)

	applied, err = firstBool(store.ResetForRegenerate(ctx, item.ID))
	mustApply(t, "ResetForRegenerate", applied, err)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusNotStarted {
		t.Fatalf("status = %s, want not_started", got.Status)
	}
	if got.Description != "" {
		t.Fatalf("description = %q, want cleared", got.Description)
	}

	// Regenerate applies only to done items.
	applied, err = store.ResetForRegenerate(ctx, item.ID)
	mustReject(t, "ResetForRegenerate from not_started", applied, err)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	store, item := newStoreWithItem(t)
	ctx := context.Background()

	applied, err := store.ResetForRetry(ctx, item.ID)
	mustReject(t, "ResetForRetry from not_started", applied, err)

	applied, err = firstBool(store.MarkInQueue(ctx, item.ID))
	mustApply(t, "MarkInQueue", applied, err)
	applied, err = firstBool(store.MarkFailed(ctx, item.ID, "model crashed"))
	mustApply(t, "MarkFailed", applied, err)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ErrorMessage != "model crashed" {
		t.Fatalf("error message = %q, want failure detail", got.ErrorMessage)
	}

	applied, err = firstBool(store.ResetForRetry(ctx, item.ID))
	mustApply(t, "ResetForRetry", applied, err)

	got, err = store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != catalog.StatusNotStarted || got.ErrorMessage != "" {
		t.Fatalf("after retry reset: status=%s error=%q, want not_started with no error", got.Status, got.ErrorMessage)
	}
}

func TestUnknownItemTransitionsAreNoOps(t *testing.T) {
	store, _ := newStoreWithItem(t)
	ctx := context.Background()

	const missing = int64(9999)
	applied, err := store.MarkInQueue(ctx, missing)
	mustReject(t, "MarkInQueue on missing id", applied, err)
	applied, err = store.MarkRemoving(ctx, missing)
	mustReject(t, "MarkRemoving on missing id", applied, err)
}

func firstBool(applied bool, err error) (bool, error) {
	return applied, err
}
