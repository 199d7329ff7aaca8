// Package llm routes stage completions to configured model backends.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/askdb/pkg/anthropic"
	"github.com/sells-group/askdb/pkg/gemini"
	"github.com/sells-group/askdb/pkg/ollama"
)

// CompletionRequest is a single prompt sent to a backend.
type CompletionRequest struct {
	Model    string
	Prompt   string
	JSONMode bool
}

// Backend produces a raw completion for a prompt.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OllamaBackend adapts a local Ollama client.
type OllamaBackend struct {
	client ollama.Client
}

// NewOllamaBackend returns a Backend over the given Ollama client.
func NewOllamaBackend(client ollama.Client) *OllamaBackend {
	return &OllamaBackend{client: client}
}

func (b *OllamaBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	gen := ollama.GenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
	}
	if req.JSONMode {
		gen.Format = "json"
	}

	resp, err := b.client.Generate(ctx, gen)
	if err != nil {
		return "", eris.Wrap(err, "llm: ollama generate")
	}

	return resp.Response, nil
}

// GeminiBackend adapts the Gemini API client.
type GeminiBackend struct {
	client gemini.Client
}

// NewGeminiBackend returns a Backend over the given Gemini client.
func NewGeminiBackend(client gemini.Client) *GeminiBackend {
	return &GeminiBackend{client: client}
}

func (b *GeminiBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	gen := gemini.GenerateContentRequest{
		Model: req.Model,
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: req.Prompt}}},
		},
	}
	if req.JSONMode {
		gen.GenerationConfig = &gemini.GenerationConfig{ResponseMIMEType: "application/json"}
	}

	resp, err := b.client.GenerateContent(ctx, gen)
	if err != nil {
		return "", eris.Wrap(err, "llm: gemini generate")
	}

	return resp.Text(), nil
}

// AnthropicBackend adapts the Anthropic API client.
type AnthropicBackend struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicBackend returns a Backend over the given Anthropic client.
func NewAnthropicBackend(client anthropic.Client) *AnthropicBackend {
	return &AnthropicBackend{client: client, maxTokens: 4096}
}

func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: b.maxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: anthropic create message")
	}

	return resp.Text(), nil
}
