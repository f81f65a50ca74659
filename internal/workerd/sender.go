package workerd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"memedex/internal/logging"
)

// Notifier delivers status and result callbacks to the daemon. Delivery is
// best-effort: failures are logged and the worker moves on, because the
// daemon reconciles from persisted state on the next full fetch.
type Notifier struct {
	callbackURL string
	client      *http.Client
	logger      *slog.Logger
}

// NewNotifier builds a callback sender with a bounded request timeout.
func NewNotifier(callbackURL string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		callbackURL: strings.TrimRight(callbackURL, "/"),
		client:      &http.Client{Timeout: timeout},
		logger:      logging.WithComponent(logger, "sender"),
	}
}

// SendStatus posts a status callback for an item.
func (n *Notifier) SendStatus(ctx context.Context, itemID int64, status int) {
	payload := map[string]any{"item_id": itemID, "status": status}
	if err := n.post(ctx, "/callbacks/status", payload); err != nil {
		n.logger.Error("status callback delivery failed",
			logging.ItemID(itemID), logging.Int("status", status), logging.Error(err))
	}
}

// SendResult posts a text result callback for an item.
func (n *Notifier) SendResult(ctx context.Context, itemID int64, text string) {
	payload := map[string]any{"item_id": itemID, "text": text}
	if err := n.post(ctx, "/callbacks/result", payload); err != nil {
		n.logger.Error("result callback delivery failed",
			logging.ItemID(itemID), logging.Error(err))
	}
}

func (n *Notifier) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.callbackURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback %s returned %d", path, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
