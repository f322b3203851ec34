// Package llm wraps the local text-generation service behind a small
// completion interface. The default backend is an Ollama instance reached
// through github.com/mozilla-ai/any-llm-go.
package llm

import "context"

// Chunk is one fragment of a streaming completion. Err is set on the final
// chunk when generation fails after the stream has started.
type Chunk struct {
	Text string
	Err  error
}

// Completer is the completion-service boundary. Both calls block; callers
// that need to bound worst-case waiting pass a context with a deadline.
type Completer interface {
	// Complete sends the rendered prompt and waits for the full response.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteStream sends the rendered prompt and returns a channel of
	// response chunks. The channel is closed when generation finishes.
	// Concatenating every chunk's Text yields what Complete would return
	// for the same prompt, assuming a deterministic backend.
	CompleteStream(ctx context.Context, prompt string) (<-chan Chunk, error)
}
