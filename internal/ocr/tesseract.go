package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Tesseract runs the tesseract command line tool.
type Tesseract struct {
	Binary  string
	Lang    string
	Timeout time.Duration
}

// NewTesseract returns an English Tesseract engine with a 20 second timeout.
func NewTesseract() *Tesseract {
	return &Tesseract{Binary: "tesseract", Lang: "eng", Timeout: 20 * time.Second}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.Binary)
	return err == nil
}

func (t *Tesseract) Close() error { return nil }

// Extract copies r to a temporary file and runs tesseract on it.
func (t *Tesseract) Extract(ctx context.Context, r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "scan-*.img")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return t.ExtractPath(ctx, f.Name())
}

// ExtractPath runs tesseract on the image at path.
func (t *Tesseract) ExtractPath(ctx context.Context, path string) (string, error) {
	if !t.Available() {
		return "", errors.New("tesseract not found in PATH")
	}
	args := []string{path, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}
