package catalog_test

import (
	"context"
	"testing"
	"time"

	"memedex/internal/catalog"
	"memedex/internal/testsupport"
)

func intPtr(v int) *int { return &v }

func TestDueSourcesSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	neverDue := testsupport.NewSource(t, store, t.TempDir(), nil)
	due := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))
	future := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))

	next := now.Add(time.Hour)
	if err := store.CompleteScan(ctx, future.ID, &next); err != nil {
		t.Fatalf("CompleteScan: %v", err)
	}

	sources, err := store.DueSources(ctx, now, 3)
	if err != nil {
		t.Fatalf("DueSources: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != due.ID {
		t.Fatalf("due sources = %v, want exactly source %d", sourceIDs(sources), due.ID)
	}
	_ = neverDue
}

func TestDueSourcesExcludesTrippedBreaker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	const threshold = 3

	source := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))

	for i := 0; i < threshold; i++ {
		count, err := store.FailScan(ctx, source.ID)
		if err != nil {
			t.Fatalf("FailScan %d: %v", i, err)
		}
		if count != i+1 {
			t.Fatalf("failure count = %d, want %d", count, i+1)
		}
	}

	sources, err := store.DueSources(ctx, time.Now(), threshold)
	if err != nil {
		t.Fatalf("DueSources: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("tripped source still due: %v", sourceIDs(sources))
	}

	if err := store.ResetFailures(ctx, source.ID); err != nil {
		t.Fatalf("ResetFailures: %v", err)
	}
	sources, err = store.DueSources(ctx, time.Now(), threshold)
	if err != nil {
		t.Fatalf("DueSources after reset: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("reset source not due again: %v", sourceIDs(sources))
	}
}

func TestCompleteScanResetsFailureCounter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))

	if _, err := store.FailScan(ctx, source.ID); err != nil {
		t.Fatalf("FailScan: %v", err)
	}
	if _, err := store.FailScan(ctx, source.ID); err != nil {
		t.Fatalf("FailScan: %v", err)
	}
	if err := store.CompleteScan(ctx, source.ID, nil); err != nil {
		t.Fatalf("CompleteScan: %v", err)
	}

	got, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.ConsecutiveFailures != 0 {
		t.Fatalf("failures = %d, want 0 after success", got.ConsecutiveFailures)
	}
	if got.ScanStatus != catalog.ScanIdle {
		t.Fatalf("scan status = %s, want idle", got.ScanStatus)
	}
}

func TestBeginScanClaimIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))

	claimed, err := store.BeginScan(ctx, source.ID)
	if err != nil {
		t.Fatalf("BeginScan: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = store.BeginScan(ctx, source.ID)
	if err != nil {
		t.Fatalf("BeginScan: %v", err)
	}
	if claimed {
		t.Fatal("second claim should lose while a scan is in progress")
	}
}

func TestReenableAutoScanClosesBreaker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))
	for i := 0; i < 3; i++ {
		if _, err := store.FailScan(ctx, source.ID); err != nil {
			t.Fatalf("FailScan: %v", err)
		}
	}

	if err := store.SetAutoScan(ctx, source.ID, false); err != nil {
		t.Fatalf("SetAutoScan off: %v", err)
	}
	if err := store.SetAutoScan(ctx, source.ID, true); err != nil {
		t.Fatalf("SetAutoScan on: %v", err)
	}

	got, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.ConsecutiveFailures != 0 {
		t.Fatalf("failures = %d, want 0 after re-enable", got.ConsecutiveFailures)
	}

	sources, err := store.DueSources(ctx, time.Now(), 3)
	if err != nil {
		t.Fatalf("DueSources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("re-enabled source not due: %v", sourceIDs(sources))
	}
}

func TestDueSourcesSubsecondComparisonIsExact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, t.TempDir(), intPtr(60))

	// A deadline whose fraction ends in a non-zero digit after a zero. An
	// encoding that trims trailing fraction zeros would store ".52" next to a
	// ".5" comparison value and get the lexical order backwards.
	base := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
	next := base.Add(520 * time.Millisecond)

	if _, err := store.BeginScan(ctx, source.ID); err != nil {
		t.Fatalf("BeginScan: %v", err)
	}
	if err := store.CompleteScan(ctx, source.ID, &next); err != nil {
		t.Fatalf("CompleteScan: %v", err)
	}

	sources, err := store.DueSources(ctx, base.Add(500*time.Millisecond), 3)
	if err != nil {
		t.Fatalf("DueSources before deadline: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("source due 20ms early: %v", sourceIDs(sources))
	}

	sources, err = store.DueSources(ctx, base.Add(520*time.Millisecond), 3)
	if err != nil {
		t.Fatalf("DueSources at deadline: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != source.ID {
		t.Fatalf("source not due at its deadline: %v", sourceIDs(sources))
	}
}

func sourceIDs(sources []*catalog.WatchedSource) []int64 {
	ids := make([]int64, 0, len(sources))
	for _, source := range sources {
		ids = append(ids, source.ID)
	}
	return ids
}
