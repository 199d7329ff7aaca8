package retrieval

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/pkg/jina"
)

// JinaReranker adapts a Jina client to the Reranker interface.
type JinaReranker struct {
	client jina.Client
	topN   int
}

// NewJinaReranker returns a Reranker over the given Jina client. topN caps
// how many nodes survive reranking; zero keeps them all.
func NewJinaReranker(client jina.Client, topN int) *JinaReranker {
	return &JinaReranker{client: client, topN: topN}
}

func (r *JinaReranker) Rerank(ctx context.Context, query string, nodes []model.RetrievalNode) ([]model.RetrievalNode, error) {
	docs := make([]string, len(nodes))
	for i, n := range nodes {
		docs[i] = n.Text
	}

	resp, err := r.client.Rerank(ctx, jina.RerankRequest{
		Query:     query,
		Documents: docs,
		TopN:      r.topN,
	})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: jina rerank")
	}

	out := make([]model.RetrievalNode, 0, len(resp.Results))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(nodes) {
			continue
		}
		node := nodes[res.Index]
		node.Score = res.RelevanceScore
		out = append(out, node)
	}

	return out, nil
}
