package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OllamaCLICompleter runs a local model through the ollama command.
type OllamaCLICompleter struct {
	Binary string
	Model  string
}

// NewOllamaCLI returns a completer running "ollama run <model>".
func NewOllamaCLI(modelName string) *OllamaCLICompleter {
	return &OllamaCLICompleter{Binary: "ollama", Model: modelName}
}

func (c *OllamaCLICompleter) Describe() string { return "ollama/" + c.Model }

// Complete writes prompt to the model's stdin and returns its stdout.
func (c *OllamaCLICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Binary, "run", c.Model)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ollama run: %w", ctx.Err())
		}
		return "", fmt.Errorf("ollama run: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Ping runs "ollama list" and checks that the model is installed.
func (c *OllamaCLICompleter) Ping(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, c.Binary, "list").Output()
	if err != nil {
		return fmt.Errorf("ollama list: %w", err)
	}
	if !strings.Contains(string(out), c.Model) {
		return fmt.Errorf("model %q not installed, run: %s pull %s", c.Model, c.Binary, c.Model)
	}
	return nil
}
