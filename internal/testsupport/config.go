package testsupport

import (
	"path/filepath"
	"testing"

	"memedex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Worker.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkerBaseURL points the gateway client at a test server.
func WithWorkerBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.BaseURL = url
	}
}

// WithScanInterval overrides the auto-scan cadence in seconds.
func WithScanInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Interval = seconds
	}
}

// WithModels replaces the configured model list.
func WithModels(defaultModel string, models ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.DefaultModel = defaultModel
		b.cfg.Worker.AvailableModels = append([]string{defaultModel}, models...)
	}
}
