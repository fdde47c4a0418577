// Package backend defines the adapter the pipeline uses to talk to an LLM:
// send one prompt, get one free-form text response, or fail with one of
// three classified errors.
package backend

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendUnavailable means the backend is not initialized or not reachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendError means the backend answered with a failure status or a
	// malformed transport response.
	ErrBackendError = errors.New("backend error")
	// ErrTimeout means the call did not finish within Options.Timeout.
	ErrTimeout = errors.New("backend timeout")
)

// Options tune a single ProcessContent call.
type Options struct {
	Temperature     float64       `json:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens"`
	Timeout         time.Duration `json:"timeout"`
}

// DefaultOptions returns the options used when the caller sets none.
func DefaultOptions() Options {
	return Options{
		Temperature:     0.3,
		MaxOutputTokens: 16000,
		Timeout:         10 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultOptions. Temperature 0 is a
// valid setting and is kept.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = d.MaxOutputTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Backend is the uniform contract implemented once per concrete LLM service.
// Implementations must tolerate responses that take minutes and must not
// assume the response is valid JSON.
type Backend interface {
	Name() string
	IsInitialized() bool
	Initialize(ctx context.Context) error
	ProcessContent(ctx context.Context, prompt string, opts Options) (string, error)
}
