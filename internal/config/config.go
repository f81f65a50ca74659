package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Worker contains configuration for the captionerd inference worker and the
// daemon's client connection to it.
type Worker struct {
	BaseURL         string   `toml:"base_url"`
	CallbackURL     string   `toml:"callback_url"`
	Bind            string   `toml:"bind"`
	RequestTimeout  int      `toml:"request_timeout"`
	CaptionCommand  string   `toml:"caption_command"`
	DefaultModel    string   `toml:"default_model"`
	AvailableModels []string `toml:"available_models"`
	PollInterval    int      `toml:"poll_interval"`
	MaxRetries      int      `toml:"max_retries"`
	RetryDelays     []int    `toml:"retry_delays"`
}

// Scan contains configuration for the auto-scan scheduler.
type Scan struct {
	Interval         int `toml:"interval"`
	FailureThreshold int `toml:"failure_threshold"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for memedex.
//
// Configuration sections by subsystem:
//   - Paths: library, data, and log directories plus the API bind address
//   - Worker: captionerd endpoint, caption command, models, retry policy
//   - Scan: auto-scan cadence and circuit-breaker threshold
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Worker  Worker  `toml:"worker"`
	Scan    Scan    `toml:"scan"`
	Logging Logging `toml:"logging"`
}

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: "~/memedex/library",
			DataDir:    "~/.local/share/memedex",
			LogDir:     "~/.local/share/memedex/logs",
			APIBind:    "127.0.0.1:8787",
		},
		Worker: Worker{
			BaseURL:         "http://127.0.0.1:8788",
			CallbackURL:     "http://127.0.0.1:8787",
			Bind:            "127.0.0.1:8788",
			RequestTimeout:  10,
			DefaultModel:    "Florence-2-base",
			AvailableModels: []string{"Florence-2-base", "Florence-2-large", "SmolVLM-256M-Instruct", "SmolVLM-500M-Instruct", "moondream2"},
			PollInterval:    5,
			MaxRetries:      3,
			RetryDelays:     []int{10, 30, 60},
		},
		Scan: Scan{
			Interval:         300,
			FailureThreshold: 3,
		},
		Logging: Logging{
			Format: "",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/memedex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// LogFilePath returns the on-disk JSON log journal location.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "memedex.log")
}

// WorkerRequestTimeout returns the bounded timeout for gateway calls.
func (c *Config) WorkerRequestTimeout() time.Duration {
	if c.Worker.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Worker.RequestTimeout) * time.Second
}

// ScanInterval returns the scheduler tick cadence.
func (c *Config) ScanInterval() time.Duration {
	if c.Scan.Interval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Scan.Interval) * time.Second
}

// ModelAllowed reports whether a model identifier is configured for use.
func (c *Config) ModelAllowed(model string) bool {
	for _, candidate := range c.Worker.AvailableModels {
		if candidate == model {
			return true
		}
	}
	return false
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
