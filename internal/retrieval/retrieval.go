// Package retrieval gathers schema and glossary context for a question.
package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/askdb/internal/model"
)

const (
	// NoSchemaFound is returned when no schema context could be retrieved.
	NoSchemaFound = "No database schema information found."

	// NoTermsFound is returned when no glossary context could be retrieved.
	NoTermsFound = "No specific business terms or definitions found."
)

// Searcher queries one vector collection for nodes similar to the question.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]model.RetrievalNode, error)
}

// Reranker reorders and filters nodes by relevance to the question.
type Reranker interface {
	Rerank(ctx context.Context, query string, nodes []model.RetrievalNode) ([]model.RetrievalNode, error)
}

// Config tunes a Retriever.
type Config struct {
	SchemaCollection   string
	GlossaryCollection string
	TopK               int
	MinRelevance       float64
}

// Context is the retrieved material for one question. The node lists are
// kept alongside the joined text so later passes can rebuild the exact
// same context strings.
type Context struct {
	Schema        string
	Glossary      string
	SchemaNodes   []model.RetrievalNode
	GlossaryNodes []model.RetrievalNode
}

// Retriever queries both collections and optionally reranks the results.
type Retriever struct {
	searcher Searcher
	reranker Reranker // nil disables reranking
	cfg      Config
}

// New returns a Retriever. Pass a nil reranker to disable reranking.
func New(searcher Searcher, reranker Reranker, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 7
	}
	return &Retriever{searcher: searcher, reranker: reranker, cfg: cfg}
}

// Retrieve gathers schema and glossary context for the question. Failures
// in either collection degrade to the corresponding not-found sentinel so
// the caller can proceed without context rather than aborting.
func (r *Retriever) Retrieve(ctx context.Context, question string) Context {
	var schemaNodes, glossaryNodes []model.RetrievalNode

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		schemaNodes = r.query(gctx, r.cfg.SchemaCollection, question)
		return nil
	})
	g.Go(func() error {
		glossaryNodes = r.query(gctx, r.cfg.GlossaryCollection, question)
		return nil
	})
	_ = g.Wait()

	out := Context{
		Schema:        NoSchemaFound,
		Glossary:      NoTermsFound,
		SchemaNodes:   schemaNodes,
		GlossaryNodes: glossaryNodes,
	}
	if text := JoinNodeText(schemaNodes); text != "" {
		out.Schema = text
	}
	if text := JoinNodeText(glossaryNodes); text != "" {
		out.Glossary = text
	}

	return out
}

func (r *Retriever) query(ctx context.Context, collection, question string) []model.RetrievalNode {
	nodes, err := r.searcher.Search(ctx, collection, question, r.cfg.TopK)
	if err != nil {
		zap.L().Warn("collection search failed, proceeding without context",
			zap.String("collection", collection),
			zap.Error(err))
		return nil
	}

	if r.reranker == nil || len(nodes) == 0 {
		return nodes
	}

	reranked, err := r.reranker.Rerank(ctx, question, nodes)
	if err != nil {
		zap.L().Warn("rerank failed, using raw search order",
			zap.String("collection", collection),
			zap.Error(err))
		return nodes
	}

	kept := reranked[:0:0]
	for _, n := range reranked {
		if n.Score >= r.cfg.MinRelevance {
			kept = append(kept, n)
		}
	}
	return kept
}

// JoinNodeText joins node texts with blank lines, skipping empty nodes.
// Both the initial retrieval and the SQL cleanup pass use this so the
// context strings they produce are identical.
func JoinNodeText(nodes []model.RetrievalNode) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, "\n\n")
}
