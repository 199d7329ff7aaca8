package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/askdb/internal/llm"
	"github.com/sells-group/askdb/internal/pipeline"
	"github.com/sells-group/askdb/internal/retrieval"
	"github.com/sells-group/askdb/internal/store"
	anthropicpkg "github.com/sells-group/askdb/pkg/anthropic"
	"github.com/sells-group/askdb/pkg/chroma"
	"github.com/sells-group/askdb/pkg/gemini"
	"github.com/sells-group/askdb/pkg/jina"
	"github.com/sells-group/askdb/pkg/ollama"
)

// pipelineEnv holds the initialized store, clients, and pipeline needed by
// the ask/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Policy   *pipeline.StageModelPolicy
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, model backends, and retriever, and builds
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	backends := map[string]llm.Backend{
		"ollama": llm.NewOllamaBackend(ollama.NewClient(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
			ollama.WithTimeout(time.Duration(cfg.Ollama.TimeoutSecs)*time.Second),
		)),
	}
	if cfg.Gemini.Key != "" {
		backends["gemini"] = llm.NewGeminiBackend(gemini.NewClient(cfg.Gemini.Key,
			gemini.WithModel(cfg.Gemini.Model),
			gemini.WithRateLimit(cfg.Gemini.RateLimit),
		))
		zap.L().Info("gemini backend enabled")
	}
	if cfg.Anthropic.Key != "" {
		backends["anthropic"] = llm.NewAnthropicBackend(anthropicpkg.NewClient(cfg.Anthropic.Key))
		zap.L().Info("anthropic backend enabled")
	}
	router := llm.NewRouter(backends)

	searcher := retrieval.NewChromaSearcher(chroma.NewClient(
		chroma.WithBaseURL(cfg.Retrieval.BaseURL),
	))

	var reranker retrieval.Reranker
	if cfg.Rerank.Enabled && cfg.Rerank.JinaKey != "" {
		jinaOpts := []jina.Option{}
		if cfg.Rerank.Model != "" {
			jinaOpts = append(jinaOpts, jina.WithModel(cfg.Rerank.Model))
		}
		reranker = retrieval.NewJinaReranker(jina.NewClient(cfg.Rerank.JinaKey, jinaOpts...), cfg.Rerank.TopN)
		zap.L().Info("reranker enabled", zap.Float64("min_relevance", cfg.Rerank.MinRelevance))
	}

	retriever := retrieval.New(searcher, reranker, retrieval.Config{
		SchemaCollection:   cfg.Retrieval.SchemaCollection,
		GlossaryCollection: cfg.Retrieval.GlossaryCollection,
		TopK:               cfg.Retrieval.TopK,
		MinRelevance:       cfg.Rerank.MinRelevance,
	})

	policy := pipeline.DefaultPolicy(cfg.Pipeline.DefaultBackend)
	if cfg.Pipeline.PolicyPath != "" {
		policy, err = pipeline.LoadPolicy(cfg.Pipeline.PolicyPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load stage policy")
		}
		zap.L().Info("stage model policy loaded", zap.String("path", cfg.Pipeline.PolicyPath))
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(st, router, retriever),
		Policy:   policy,
	}, nil
}
