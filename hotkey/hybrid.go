package hotkey

import (
	"sync/atomic"
	"time"
)

// Hybrid layers tap-to-toggle on top of hold-to-talk using the same key.
// A press always starts recording immediately; releasing before the
// long-press threshold latches the recording on until the next tap, while
// holding past it behaves as plain push-to-talk and stops on release.
type Hybrid struct {
	startCh chan struct{}
	stopCh  chan struct{}
	toggle  atomic.Bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
// longPress is the hold duration separating a tap from push-to-talk.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start signals that a recording should begin.
func (h *Hybrid) Start() <-chan struct{} { return h.startCh }

// StopChan signals that the current recording should end, in both modes.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording is latched on by a tap
// rather than held down.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		h.toggle.Store(false)
		select {
		case h.startCh <- struct{}{}:
		default:
		}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past the threshold: stop on release.
			<-hk.Keyup()
		case <-hk.Keyup():
			// Tap: latched on until the next press+release.
			if !timer.Stop() {
				<-timer.C
			}
			h.toggle.Store(true)
			<-hk.Keydown()
			<-hk.Keyup()
			h.toggle.Store(false)
		}

		select {
		case h.stopCh <- struct{}{}:
		default:
		}
	}
}
