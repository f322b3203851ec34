package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Fake is a scripted engine for tests and the headless test mode. Each
// queued utterance is delivered as cumulative word-prefix partials from a
// separate goroutine, then returned by Record, mirroring how a real engine
// behaves while a Record call is blocked.
type Fake struct {
	say       chan string
	initErr   error
	onPartial PartialFunc
	started   atomic.Bool
	stops     atomic.Int32

	mu       sync.Mutex
	partials []string
}

func NewFake(utterances ...string) *Fake {
	f := &Fake{say: make(chan string, 16)}
	for _, u := range utterances {
		f.say <- u
	}
	return f
}

// FailInit makes the next Start return err.
func (f *Fake) FailInit(err error) { f.initErr = err }

// Say queues one utterance for the next Record call.
func (f *Fake) Say(text string) { f.say <- text }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Start(_ context.Context, onPartial PartialFunc) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.onPartial = onPartial
	f.started.Store(true)
	return nil
}

func (f *Fake) Record(ctx context.Context) (string, error) {
	if !f.started.Load() {
		return "", ErrNotStarted
	}

	var text string
	select {
	case text = <-f.say:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	// Partials arrive from a different goroutine than the Record caller.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		words := strings.Fields(text)
		for i := range words {
			partial := strings.Join(words[:i+1], " ")
			f.mu.Lock()
			f.partials = append(f.partials, partial)
			f.mu.Unlock()
			if f.onPartial != nil {
				f.onPartial(partial)
			}
		}
	}()
	wg.Wait()

	return text, nil
}

func (f *Fake) Stop() error {
	f.stops.Add(1)
	f.started.Store(false)
	return nil
}

// StopCount reports how many times Stop ran.
func (f *Fake) StopCount() int { return int(f.stops.Load()) }

// Partials returns every partial emitted so far.
func (f *Fake) Partials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.partials))
	copy(out, f.partials)
	return out
}
