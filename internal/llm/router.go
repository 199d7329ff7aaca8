package llm

import (
	"context"

	"go.uber.org/zap"
)

// ModelRef names a backend together with the model to request from it.
type ModelRef struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// Router dispatches completions to named backends.
type Router struct {
	backends map[string]Backend
}

// NewRouter returns a Router over the given named backends.
func NewRouter(backends map[string]Backend) *Router {
	return &Router{backends: backends}
}

// Complete runs the prompt against the referenced backend. Backend errors
// degrade to an empty completion so callers treat them like unparseable
// output rather than aborting.
func (r *Router) Complete(ctx context.Context, ref ModelRef, prompt string, jsonMode bool) string {
	backend, ok := r.backends[ref.Backend]
	if !ok {
		zap.L().Warn("unknown backend, degrading to empty completion",
			zap.String("backend", ref.Backend))
		return ""
	}

	out, err := backend.Complete(ctx, CompletionRequest{
		Model:    ref.Model,
		Prompt:   prompt,
		JSONMode: jsonMode,
	})
	if err != nil {
		zap.L().Warn("backend completion failed, degrading to empty completion",
			zap.String("backend", ref.Backend),
			zap.String("model", ref.Model),
			zap.Error(err))
		return ""
	}

	return out
}
