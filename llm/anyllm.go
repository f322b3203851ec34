package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Low temperature for consistent cleanup output.
const defaultTemperature = 0.3

// Provider implements Completer on top of any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for the named backend. providerName is one of
// "ollama", "llamacpp", "openai", "groq".
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, name: strings.ToLower(providerName), model: model}, nil
}

// FromEnv builds a Provider from MURMUR_LLM_PROVIDER, OLLAMA_MODEL and
// OLLAMA_BASE_URL, defaulting to a local Ollama with llama3.2.
func FromEnv() (*Provider, error) {
	providerName := os.Getenv("MURMUR_LLM_PROVIDER")
	if providerName == "" {
		providerName = "ollama"
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "llama3.2"
	}
	var opts []anyllmlib.Option
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}
	return New(providerName, model, opts...)
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "ollama":
		return ollama.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q (use ollama, llamacpp, openai or groq)", providerName)
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

func (p *Provider) params(prompt string) anyllmlib.CompletionParams {
	t := defaultTemperature
	return anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: "user", Content: prompt},
		},
		Temperature: &t,
	}
}

// Complete implements Completer.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.backend.Completion(ctx, p.params(prompt))
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// CompleteStream implements Completer. Callers must drain the channel.
func (p *Provider) CompleteStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	backendChunks, backendErrs := p.backend.CompletionStream(ctx, p.params(prompt))

	ch := make(chan Chunk, 32)
	go func() {
		defer close(ch)
		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			select {
			case ch <- Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		// Backend errors surface after the chunk channel drains.
		if err := <-backendErrs; err != nil {
			select {
			case ch <- Chunk{Err: fmt.Errorf("llm: completion stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}
