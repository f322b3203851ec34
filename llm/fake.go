package llm

import (
	"context"
	"sync"
)

// Fake is an in-process Completer for tests. It records every prompt and
// counts calls so tests can verify the raw-mode bypass makes no service call.
type Fake struct {
	// Response is returned verbatim when Fn is nil.
	Response string
	// Fn, when set, computes the response from the prompt.
	Fn func(prompt string) (string, error)
	// Err, when set, fails both Complete and the stream.
	Err error
	// StreamChunkSize is the chunk length in bytes for CompleteStream
	// (default 8).
	StreamChunkSize int

	mu      sync.Mutex
	calls   int
	prompts []string
}

func NewFake(response string) *Fake {
	return &Fake{Response: response}
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

func (f *Fake) respond(prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	if f.Fn != nil {
		return f.Fn(prompt)
	}
	return f.Response, nil
}

func (f *Fake) Complete(_ context.Context, prompt string) (string, error) {
	return f.respond(prompt)
}

func (f *Fake) CompleteStream(_ context.Context, prompt string) (<-chan Chunk, error) {
	text, err := f.respond(prompt)

	size := f.StreamChunkSize
	if size <= 0 {
		size = 8
	}

	ch := make(chan Chunk, len(text)/size+2)
	go func() {
		defer close(ch)
		if err != nil {
			ch <- Chunk{Err: err}
			return
		}
		for len(text) > 0 {
			n := size
			if n > len(text) {
				n = len(text)
			}
			ch <- Chunk{Text: text[:n]}
			text = text[n:]
		}
	}()
	return ch, nil
}
