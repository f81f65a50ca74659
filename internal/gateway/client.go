package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"memedex/internal/config"
)

const userAgent = "memedex/0.1.0"

// ErrUnavailable wraps transport failures and timeouts talking to the worker.
// Callers treat it as a submission failure, never as "still pending".
var ErrUnavailable = errors.New("inference worker unavailable")

// SubmitRequest is the outbound job description.
type SubmitRequest struct {
	ItemID     int64  `json:"item_id"`
	SourcePath string `json:"source_path"`
	ModelID    string `json:"model_id"`
}

// CancelRequest asks the worker to drop a queued or in-flight job.
type CancelRequest struct {
	ItemID int64 `json:"item_id"`
}

// Client submits and cancels jobs on the external captioning worker.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a worker client with the configured bounded timeout.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Worker.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.WorkerRequestTimeout()},
	}
}

// Submit sends a job description to the worker. Transport failures and non-2xx
// responses are surfaced; there is no automatic retry.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	return c.post(ctx, "/jobs", req)
}

// Cancel requests the worker drop a job. The worker answers 200 whether or
// not a matching job existed, so a late cancel on a finished job is a no-op.
func (c *Client) Cancel(ctx context.Context, itemID int64) error {
	return c.post(ctx, "/jobs/cancel", CancelRequest{ItemID: itemID})
}

// QueueDepth reports the worker's pending job count. Operational visibility
// only; correctness decisions never depend on it.
func (c *Client) QueueDepth(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/queue-depth", nil)
	if err != nil {
		return 0, fmt.Errorf("build queue-depth request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: queue-depth returned %d", ErrUnavailable, resp.StatusCode)
	}
	var body struct {
		QueueLength int `json:"queue_length"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode queue-depth response: %w", err)
	}
	return body.QueueLength, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
