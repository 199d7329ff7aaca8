package retrieval

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/pkg/chroma"
)

// ChromaSearcher adapts a Chroma client to the Searcher interface.
type ChromaSearcher struct {
	client chroma.Client
}

// NewChromaSearcher returns a Searcher over the given Chroma client.
func NewChromaSearcher(client chroma.Client) *ChromaSearcher {
	return &ChromaSearcher{client: client}
}

func (s *ChromaSearcher) Search(ctx context.Context, collection, query string, topK int) ([]model.RetrievalNode, error) {
	result, err := s.client.Query(ctx, chroma.QueryRequest{
		Collection: collection,
		QueryTexts: []string{query},
		NResults:   topK,
		Include:    []string{"documents", "distances", "metadatas"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: chroma query")
	}
	if len(result.Documents) == 0 {
		return nil, nil
	}

	docs := result.Documents[0]
	nodes := make([]model.RetrievalNode, 0, len(docs))
	for i, doc := range docs {
		node := model.RetrievalNode{
			Text:       doc,
			Collection: collection,
		}
		// Chroma reports cosine distance; flip it so larger means closer.
		if len(result.Distances) > 0 && i < len(result.Distances[0]) {
			node.Score = 1 - result.Distances[0][i]
		}
		if len(result.Metadatas) > 0 && i < len(result.Metadatas[0]) {
			node.Metadata = result.Metadatas[0][i]
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}
