package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/internal/pipeline"
	"github.com/sells-group/askdb/internal/store"
)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  []string
	result *model.GenerateResult
	done   chan struct{}
}

func (f *fakeGenerator) Generate(_ context.Context, question, userID string, _ *pipeline.StageModelPolicy) (*model.GenerateResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, question+"|"+userID)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return f.result, nil
}

type panickingGenerator struct {
	done chan struct{}
}

func (p *panickingGenerator) Generate(_ context.Context, _, _ string, _ *pipeline.StageModelPolicy) (*model.GenerateResult, error) {
	defer close(p.done)
	panic("stage blew up")
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(context.Background(), &fakeGenerator{}, newTestStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestGenerateEndpointAccepted(t *testing.T) {
	gen := &fakeGenerator{result: &model.GenerateResult{SQL: "SELECT 1"}, done: make(chan struct{})}
	router := newRouter(context.Background(), gen, newTestStore(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/generate",
		strings.NewReader(`{"question": "total sales per region"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["status"])
	assert.NotEmpty(t, body["user_id"])

	<-gen.done
	gen.mu.Lock()
	defer gen.mu.Unlock()
	require.Len(t, gen.calls, 1)
	assert.True(t, strings.HasPrefix(gen.calls[0], "total sales per region|"))
}

func TestGenerateEndpointSurvivesPanic(t *testing.T) {
	gen := &panickingGenerator{done: make(chan struct{})}
	router := newRouter(context.Background(), gen, newTestStore(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/generate",
		strings.NewReader(`{"question": "total sales per region"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	<-gen.done

	// The polling read path keeps serving after the worker panicked.
	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, health)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateEndpointMissingQuestion(t *testing.T) {
	router := newRouter(context.Background(), &fakeGenerator{}, newTestStore(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert(context.Background(), "u1", map[string]string{
		model.FieldUserQuestion: "my question",
	}))

	router := newRouter(context.Background(), &fakeGenerator{}, st, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var row model.StatusRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "my question", row.UserQuestion)
	assert.Equal(t, model.NotStarted, row.SQL)
}

func TestStatusEndpointNotFound(t *testing.T) {
	router := newRouter(context.Background(), &fakeGenerator{}, newTestStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
