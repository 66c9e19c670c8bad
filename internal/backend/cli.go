package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// OllamaCLI runs `ollama run <model>` and feeds the prompt on stdin. It is the
// fallback transport for hosts where the daemon API is not exposed.
type OllamaCLI struct {
	command string
	model   string
}

// NewOllamaCLI returns a CLI completer. An empty command defaults to "ollama".
func NewOllamaCLI(command, model string) *OllamaCLI {
	if command == "" {
		command = "ollama"
	}
	return &OllamaCLI{command: command, model: model}
}

// Name identifies the backend in logs.
func (c *OllamaCLI) Name() string { return "ollama-cli/" + c.model }

// Complete runs the model once. The process is killed when ctx expires.
func (c *OllamaCLI) Complete(ctx context.Context, prompt string) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("ollama model not configured")
	}

	cmd := exec.CommandContext(ctx, c.command, "run", c.model)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with %d: %s", c.command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", err
	}

	return stripEcho(stdout.String(), prompt), nil
}

// stripEcho removes the prompt when an interactive shell echoes it back.
func stripEcho(output, prompt string) string {
	output = strings.TrimSpace(output)
	if p := strings.TrimSpace(prompt); p != "" && strings.HasPrefix(output, p) {
		output = strings.TrimSpace(output[len(p):])
	}
	return output
}
