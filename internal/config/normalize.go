package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	pathFields := []struct {
		name  string
		value *string
	}{
		{"library_dir", &c.Paths.LibraryDir},
		{"data_dir", &c.Paths.DataDir},
		{"log_dir", &c.Paths.LogDir},
	}
	for _, field := range pathFields {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			*field.value = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Worker.BaseURL = strings.TrimRight(strings.TrimSpace(c.Worker.BaseURL), "/")
	c.Worker.CallbackURL = strings.TrimRight(strings.TrimSpace(c.Worker.CallbackURL), "/")
	c.Worker.Bind = strings.TrimSpace(c.Worker.Bind)
	c.Worker.DefaultModel = strings.TrimSpace(c.Worker.DefaultModel)

	models := make([]string, 0, len(c.Worker.AvailableModels))
	for _, model := range c.Worker.AvailableModels {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	c.Worker.AvailableModels = models

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
