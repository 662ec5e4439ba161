// Package ocr turns scanned answer sheets into text.
package ocr

import (
	"context"
	"io"
)

// Engine extracts text from an image. An Engine is constructed once at
// startup, shared by all requests and closed on shutdown.
type Engine interface {
	Name() string
	Extract(ctx context.Context, r io.Reader) (string, error)
	// Available reports whether the engine can currently run.
	Available() bool
	Close() error
}
