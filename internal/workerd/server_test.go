package workerd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"memedex/internal/logging"
	"memedex/internal/testsupport"
)

func newJobAPI(t *testing.T) (*httptest.Server, *JobQueue) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	queue := newQueue(t)
	captioner := &funcCaptioner{fn: func(ctx context.Context, imagePath, model string) (string, error) {
		return "", nil
	}}
	worker := NewWorker(cfg, queue, NewNotifier("http://127.0.0.1:0", 0, logging.NewNop()), captioner, logging.NewNop())
	server := NewServer(cfg, queue, worker, logging.NewNop())
	api := httptest.NewServer(server.http.Handler)
	t.Cleanup(api.Close)
	return api, queue
}

func postJob(t *testing.T, api *httptest.Server, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(api.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitEndpointAcceptsJob(t *testing.T) {
	api, queue := newJobAPI(t)

	resp := postJob(t, api, "/jobs", map[string]any{
		"item_id":     9,
		"source_path": "/library/frog.jpg",
		"model_id":    "Florence-2-base",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var accepted struct {
		JobID int64 `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.JobID == 0 {
		t.Fatal("expected a job id")
	}

	depth, err := queue.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("depth = %d, want 1", depth)
	}
}

func TestSubmitEndpointValidates(t *testing.T) {
	api, _ := newJobAPI(t)

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"missing item", map[string]any{"source_path": "/a.jpg", "model_id": "Florence-2-base"}},
		{"missing path", map[string]any{"item_id": 1, "model_id": "Florence-2-base"}},
		{"unknown model", map[string]any{"item_id": 1, "source_path": "/a.jpg", "model_id": "no-such-model"}},
	}
	for _, tc := range cases {
		resp := postJob(t, api, "/jobs", tc.payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}

func TestCancelEndpoint(t *testing.T) {
	api, queue := newJobAPI(t)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, 3, "/a.jpg", "Florence-2-base"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	resp := postJob(t, api, "/jobs/cancel", map[string]any{"item_id": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	depth, err := queue.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("depth = %d, want 0 after cancel", depth)
	}
}

func TestQueueDepthEndpoint(t *testing.T) {
	api, queue := newJobAPI(t)
	ctx := context.Background()

	for i := int64(1); i <= 2; i++ {
		if _, err := queue.Enqueue(ctx, i, "/a.jpg", "Florence-2-base"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	resp, err := http.Get(api.URL + "/jobs/queue-depth")
	if err != nil {
		t.Fatalf("GET queue-depth: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		QueueLength int `json:"queue_length"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.QueueLength != 2 {
		t.Fatalf("queue_length = %d, want 2", payload.QueueLength)
	}
}
