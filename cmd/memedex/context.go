package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memedex/internal/config"
)

// commandContext carries lazily-loaded configuration and the HTTP client used
// to talk to a running daemon.
type commandContext struct {
	configFlag *string

	mu     sync.Mutex
	cfg    *config.Config
	client *http.Client
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) apiURL(path string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return "http://" + cfg.Paths.APIBind + path, nil
}

// sessionToken returns a stable per-user session identifier, minting one on
// first use. Bulk operations on the daemon are scoped to this token.
func (c *commandContext) sessionToken() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.Paths.DataDir, "session")
	if data, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(token); parseErr == nil {
			return token, nil
		}
	}
	token := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist session token: %w", err)
	}
	return token, nil
}

func (c *commandContext) getJSON(path string, out any) error {
	return c.doJSON(http.MethodGet, path, nil, out, false)
}

func (c *commandContext) postJSON(path string, payload, out any) error {
	return c.doJSON(http.MethodPost, path, payload, out, false)
}

func (c *commandContext) getSessionJSON(path string, out any) error {
	return c.doJSON(http.MethodGet, path, nil, out, true)
}

func (c *commandContext) postSessionJSON(path string, payload, out any) error {
	return c.doJSON(http.MethodPost, path, payload, out, true)
}

func (c *commandContext) doJSON(method, path string, payload, out any, withSession bool) error {
	url, err := c.apiURL(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withSession {
		token, err := c.sessionToken()
		if err != nil {
			return err
		}
		req.AddCookie(&http.Cookie{Name: "memedex_session", Value: token})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
