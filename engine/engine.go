// Package engine wraps the speech-to-text engine behind a small lifecycle
// interface. The engine itself is a black box: it owns the microphone and
// its own voice-activity detection, delivers live partial transcripts on
// its own goroutine, and decides when an utterance is finished.
package engine

import (
	"context"
	"errors"
	"os"
)

// PartialFunc receives successively more complete partial transcripts while
// a Record call is blocked. It is invoked from the engine's own goroutine
// and must not block it.
type PartialFunc func(text string)

type Engine interface {
	Name() string

	// Start performs one-time initialization and registers the single
	// live-update callback. Expensive; called once at startup.
	Start(ctx context.Context, onPartial PartialFunc) error

	// Record blocks until the engine detects the end of an utterance and
	// returns the finalized text, or "" when no speech was detected.
	Record(ctx context.Context) (string, error)

	// Stop releases engine resources. Safe to call more than once.
	Stop() error
}

// InitError marks a failed engine initialization. Init failures are fatal
// and not retried.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "engine init: " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

var ErrNotStarted = errors.New("engine not started")

// New selects the engine from the environment: a transcription daemon at
// MURMUR_STT_URL, defaulting to a local server.
func New() Engine {
	url := os.Getenv("MURMUR_STT_URL")
	if url == "" {
		url = DefaultServerURL
	}
	return NewSocket(url)
}
