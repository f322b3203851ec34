// Package processor maps a processing mode to a prompt template and runs
// the rendered prompt through the completion service, synchronously or as a
// chunk stream.
package processor

import (
	"context"
	"strings"
	"time"

	"murmur/llm"
)

// Processor renders mode templates and invokes the completion service.
// The template table is fixed at construction.
type Processor struct {
	completer llm.Completer
	templates Templates
	timeout   time.Duration
}

type Option func(*Processor)

// WithTimeout bounds each completion call. The service is a local dependency
// that can hang; zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

func New(completer llm.Completer, templates Templates, opts ...Option) *Processor {
	p := &Processor{completer: completer, templates: templates}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Modes returns the modes present in this processor's template table.
func (p *Processor) Modes() []Mode {
	modes := make([]Mode, 0, len(p.templates))
	for m := range p.templates {
		modes = append(modes, m)
	}
	return modes
}

// render returns the prompt for mode, or ok=false when the mode bypasses
// the completion service (raw mode or no template entry).
func (p *Processor) render(text string, mode Mode) (string, bool) {
	if mode == ModeRaw {
		return "", false
	}
	tmpl, ok := p.templates[mode]
	if !ok || tmpl == "" {
		return "", false
	}
	return strings.ReplaceAll(tmpl, placeholder, text), true
}

func (p *Processor) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

// Process transforms text according to mode and returns the trimmed result.
// Empty or whitespace-only input returns "". Raw mode and unknown modes
// return the trimmed input without a completion call. Completion errors
// propagate to the caller; there is no retry.
func (p *Processor) Process(ctx context.Context, text string, mode Mode) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}

	prompt, ok := p.render(text, mode)
	if !ok {
		return trimmed, nil
	}

	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	result, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// ProcessStream is the incremental variant of Process. The returned channel
// is finite and not restartable; concatenating every chunk's Text equals the
// Process result for the same input and mode. Errors surface as a final
// chunk with Err set.
func (p *Processor) ProcessStream(ctx context.Context, text string, mode Mode) <-chan llm.Chunk {
	out := make(chan llm.Chunk, 16)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		close(out)
		return out
	}

	prompt, ok := p.render(text, mode)
	if !ok {
		out <- llm.Chunk{Text: trimmed}
		close(out)
		return out
	}

	go func() {
		defer close(out)

		ctx, cancel := p.callCtx(ctx)
		defer cancel()

		upstream, err := p.completer.CompleteStream(ctx, prompt)
		if err != nil {
			out <- llm.Chunk{Err: err}
			return
		}

		// Trim the stream as a whole: drop leading whitespace before the
		// first visible chunk and hold back trailing whitespace until more
		// text proves it interior.
		started := false
		held := ""
		for chunk := range upstream {
			if chunk.Err != nil {
				out <- chunk
				return
			}
			text := held + chunk.Text
			held = ""
			if !started {
				text = strings.TrimLeft(text, " \t\r\n")
				if text == "" {
					continue
				}
				started = true
			}
			if tail := len(text) - len(strings.TrimRight(text, " \t\r\n")); tail > 0 {
				held = text[len(text)-tail:]
				text = text[:len(text)-tail]
			}
			if text != "" {
				out <- llm.Chunk{Text: text}
			}
		}
	}()
	return out
}

// Collect drains a chunk stream into a single string, returning the first
// error encountered.
func Collect(ch <-chan llm.Chunk) (string, error) {
	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			// Drain remaining chunks so the producer can exit.
			for range ch {
			}
			return "", chunk.Err
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}
