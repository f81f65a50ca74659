package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		problems = append(problems, "paths.api_bind must be set")
	}
	if strings.TrimSpace(c.Worker.BaseURL) == "" {
		problems = append(problems, "worker.base_url must be set")
	}
	if c.Worker.RequestTimeout < 0 {
		problems = append(problems, "worker.request_timeout must not be negative")
	}
	if c.Worker.MaxRetries < 1 {
		problems = append(problems, "worker.max_retries must be at least 1")
	}
	if c.Worker.DefaultModel == "" {
		problems = append(problems, "worker.default_model must be set")
	}
	if len(c.Worker.AvailableModels) > 0 && !c.ModelAllowed(c.Worker.DefaultModel) {
		problems = append(problems, fmt.Sprintf("worker.default_model %q is not in worker.available_models", c.Worker.DefaultModel))
	}
	if c.Scan.FailureThreshold < 1 {
		problems = append(problems, "scan.failure_threshold must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
