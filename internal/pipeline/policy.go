package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/askdb/internal/llm"
	"github.com/sells-group/askdb/internal/model"
)

// StageModelPolicy routes each stage to a model backend. Routing is an
// explicit per-run parameter rather than process-global state, so concurrent
// runs can use different policies.
type StageModelPolicy struct {
	Default llm.ModelRef                 `yaml:"default"`
	Stages  map[model.Stage]llm.ModelRef `yaml:"stages"`
}

// For returns the model routing for a stage, falling back to the default.
func (p *StageModelPolicy) For(stage model.Stage) llm.ModelRef {
	if p == nil {
		return llm.ModelRef{}
	}
	if ref, ok := p.Stages[stage]; ok {
		return ref
	}
	return p.Default
}

// DefaultPolicy routes every stage to one backend with its default model.
func DefaultPolicy(backend string) *StageModelPolicy {
	return &StageModelPolicy{Default: llm.ModelRef{Backend: backend}}
}

// LoadPolicy reads a stage routing policy from a YAML file.
func LoadPolicy(path string) (*StageModelPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read policy %s", path)
	}

	var p StageModelPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse policy %s", path)
	}
	if p.Default.Backend == "" {
		return nil, eris.Errorf("pipeline: policy %s has no default backend", path)
	}

	return &p, nil
}
