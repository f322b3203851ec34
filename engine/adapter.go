package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Adapter is what the dictation loop talks to. It owns the live-partial
// handoff between the engine goroutine and the caller: only the most recent
// partial is kept, in a single atomic slot, and the slot is cleared when a
// Record call begins or returns so stale partials are never observable.
type Adapter struct {
	eng     Engine
	onLive  PartialFunc
	live    atomic.Value // string
	started atomic.Bool
	stopped sync.Once
}

// NewAdapter wraps eng. onLive, when non-nil, receives every partial for
// display; it runs on the engine's goroutine and must return quickly.
func NewAdapter(eng Engine, onLive PartialFunc) *Adapter {
	a := &Adapter{eng: eng, onLive: onLive}
	a.live.Store("")
	return a
}

func (a *Adapter) Name() string { return a.eng.Name() }

func (a *Adapter) Start(ctx context.Context) error {
	if err := a.eng.Start(ctx, a.handlePartial); err != nil {
		return &InitError{Err: err}
	}
	a.started.Store(true)
	return nil
}

func (a *Adapter) handlePartial(text string) {
	a.live.Store(text)
	if a.onLive != nil {
		a.onLive(text)
	}
}

// Record blocks until the engine finishes one utterance and returns the
// trimmed final text, "" when no speech was detected.
func (a *Adapter) Record(ctx context.Context) (string, error) {
	if !a.started.Load() {
		return "", ErrNotStarted
	}
	a.live.Store("")
	text, err := a.eng.Record(ctx)
	a.live.Store("")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// LiveText returns the most recent partial transcript. Purely for
// inspection; it never influences control flow.
func (a *Adapter) LiveText() string {
	return a.live.Load().(string)
}

// Stop releases the engine. Idempotent.
func (a *Adapter) Stop() {
	a.stopped.Do(func() {
		a.started.Store(false)
		a.eng.Stop()
	})
}
