package workerd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"memedex/internal/catalog"
	"memedex/internal/config"
	"memedex/internal/logging"
	"memedex/internal/testsupport"
)

type callbackEvent struct {
	kind   string // "status" or "result"
	itemID int64
	status int
	text   string
}

type callbackCollector struct {
	events chan callbackEvent
}

func newCallbackCollector() *callbackCollector {
	return &callbackCollector{events: make(chan callbackEvent, 32)}
}

func (c *callbackCollector) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /callbacks/status", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ItemID int64 `json:"item_id"`
			Status int   `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.events <- callbackEvent{kind: "status", itemID: payload.ItemID, status: payload.Status}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /callbacks/result", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ItemID int64  `json:"item_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.events <- callbackEvent{kind: "result", itemID: payload.ItemID, text: payload.Text}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (c *callbackCollector) next(t *testing.T) callbackEvent {
	t.Helper()
	select {
	case event := <-c.events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a callback")
		return callbackEvent{}
	}
}

func (c *callbackCollector) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case event := <-c.events:
		t.Fatalf("unexpected callback %+v", event)
	case <-time.After(wait):
	}
}

type funcCaptioner struct {
	fn func(ctx context.Context, imagePath, model string) (string, error)
}

func (f *funcCaptioner) Caption(ctx context.Context, imagePath, model string) (string, error) {
	return f.fn(ctx, imagePath, model)
}

func newTestWorker(t *testing.T, cfg *config.Config, captioner Captioner) (*Worker, *JobQueue, *callbackCollector) {
	t.Helper()
	collector := newCallbackCollector()
	server := httptest.NewServer(collector.handler())
	t.Cleanup(server.Close)
	cfg.Worker.CallbackURL = server.URL

	queue, err := OpenQueue(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	notifier := NewNotifier(cfg.Worker.CallbackURL, cfg.WorkerRequestTimeout(), logging.NewNop())
	worker := NewWorker(cfg, queue, notifier, captioner, logging.NewNop())
	return worker, queue, collector
}

func TestWorkerCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	captioner := &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		return "a cat in a box", nil
	}}
	worker, queue, collector := newTestWorker(t, cfg, captioner)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 11, "/img/cat.jpg", "Florence-2-base"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer worker.Stop()

	first := collector.next(t)
	if first.kind != "status" || first.status != int(catalog.StatusProcessing) {
		t.Fatalf("first callback = %+v, want processing status", first)
	}
	second := collector.next(t)
	if second.kind != "result" || second.text != "a cat in a box" {
		t.Fatalf("second callback = %+v, want the caption", second)
	}
	third := collector.next(t)
	if third.kind != "status" || third.status != int(catalog.StatusDone) {
		t.Fatalf("third callback = %+v, want done status", third)
	}

	waitForDepth(t, queue, 0)
}

func TestWorkerPermanentFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	captioner := &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		return "", &PermanentError{Err: errors.New("image unavailable")}
	}}
	worker, queue, collector := newTestWorker(t, cfg, captioner)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 21, "/img/missing.jpg", "Florence-2-base"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer worker.Stop()

	first := collector.next(t)
	if first.status != int(catalog.StatusProcessing) {
		t.Fatalf("first callback = %+v", first)
	}
	second := collector.next(t)
	if second.kind != "status" || second.status != int(catalog.StatusFailed) {
		t.Fatalf("second callback = %+v, want failed status", second)
	}
	third := collector.next(t)
	if third.kind != "result" || third.text != "image unavailable" {
		t.Fatalf("third callback = %+v, want the failure detail", third)
	}

	waitForDepth(t, queue, 0)
}

func TestWorkerRetriesTransientThenFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.MaxRetries = 2
	cfg.Worker.RetryDelays = []int{0}

	attempts := 0
	captioner := &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		attempts++
		return "", &TransientError{Err: errors.New("model busy")}
	}}
	worker, queue, collector := newTestWorker(t, cfg, captioner)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 31, "/img/busy.jpg", "Florence-2-base"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer worker.Stop()

	// Attempt 1 and the retry each announce processing; the retry exhausts
	// the budget and fails permanently.
	for i := 0; i < 2; i++ {
		event := collector.next(t)
		if event.kind != "status" || event.status != int(catalog.StatusProcessing) {
			t.Fatalf("attempt %d callback = %+v, want processing", i+1, event)
		}
	}
	failure := collector.next(t)
	if failure.kind != "status" || failure.status != int(catalog.StatusFailed) {
		t.Fatalf("callback = %+v, want failed status", failure)
	}
	detail := collector.next(t)
	if detail.kind != "result" || !strings.Contains(detail.text, "max retries") {
		t.Fatalf("callback = %+v, want a max-retries failure message", detail)
	}
	if attempts != 2 {
		t.Fatalf("captioner ran %d times, want 2", attempts)
	}

	waitForDepth(t, queue, 0)
}

func TestCancelDiscardsInFlightResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	release := make(chan struct{})
	captioner := &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		<-release
		return "late caption", nil
	}}
	worker, queue, collector := newTestWorker(t, cfg, captioner)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 41, "/img/slow.jpg", "Florence-2-base"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer worker.Stop()

	processing := collector.next(t)
	if processing.status != int(catalog.StatusProcessing) {
		t.Fatalf("callback = %+v, want processing", processing)
	}

	if err := worker.CancelItem(ctx, 41); err != nil {
		t.Fatalf("CancelItem: %v", err)
	}
	close(release)

	// The completed caption must be swallowed, not delivered.
	collector.expectNone(t, 500*time.Millisecond)
	waitForDepth(t, queue, 0)
}

func TestCancelRemovesQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	worker, queue, _ := newTestWorker(t, cfg, &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		return "unused", nil
	}})
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 51, "/img/a.jpg", "m"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := worker.CancelItem(ctx, 51); err != nil {
		t.Fatalf("CancelItem: %v", err)
	}

	depth, err := queue.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("depth = %d, want the queued job removed", depth)
	}
}

func waitForDepth(t *testing.T, queue *JobQueue, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		depth, err := queue.Depth(context.Background())
		if err != nil {
			t.Fatalf("Depth: %v", err)
		}
		if depth == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("queue depth never reached %d", want)
}
