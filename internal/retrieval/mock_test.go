package retrieval

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/pkg/chroma"
	"github.com/sells-group/askdb/pkg/jina"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, collection, query string, topK int) ([]model.RetrievalNode, error) {
	args := m.Called(ctx, collection, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetrievalNode), args.Error(1)
}

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, query string, nodes []model.RetrievalNode) ([]model.RetrievalNode, error) {
	args := m.Called(ctx, query, nodes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetrievalNode), args.Error(1)
}

type mockChroma struct {
	mock.Mock
}

func (m *mockChroma) Query(ctx context.Context, req chroma.QueryRequest) (*chroma.QueryResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chroma.QueryResult), args.Error(1)
}

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Rerank(ctx context.Context, req jina.RerankRequest) (*jina.RerankResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.RerankResponse), args.Error(1)
}
