package workerd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Captioner produces a text description for one image.
type Captioner interface {
	Caption(ctx context.Context, imagePath, model string) (string, error)
}

// ExecCaptioner shells out to a configured command, passing the image path
// and model identifier as arguments and reading the caption from stdout.
type ExecCaptioner struct {
	command string
}

// NewExecCaptioner builds a command-backed captioner.
func NewExecCaptioner(command string) (*ExecCaptioner, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("caption command is not configured")
	}
	return &ExecCaptioner{command: command}, nil
}

// Caption runs the command. A missing or unreadable image is a permanent
// failure; a command error is transient and may succeed on retry.
func (c *ExecCaptioner) Caption(ctx context.Context, imagePath, model string) (string, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return "", &PermanentError{Err: fmt.Errorf("image unavailable: %w", err)}
	}

	cmd := exec.CommandContext(ctx, c.command, imagePath, model)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", &TransientError{Err: fmt.Errorf("caption command failed: %s", detail)}
	}

	caption := strings.TrimSpace(stdout.String())
	if caption == "" {
		return "", &TransientError{Err: errors.New("caption command produced no output")}
	}
	return caption, nil
}
