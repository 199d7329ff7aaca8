package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/askdb/internal/llm"
	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/internal/retrieval"
	"github.com/sells-group/askdb/internal/store"
)

// Prompt markers unique to each stage template, used to script per-stage
// completions without coupling tests to full prompt text.
const (
	markerClean        = "expert data analyst"
	markerTables       = "analyzing database schemas"
	markerJoins        = "JOIN operations required"
	markerGrouping     = "grouping columns and simple"
	markerCalculations = "pre-defined aggregations"
	markerFiltering    = "filtering conditions within"
	markerSQLGen       = "expert SQL query generator"
	markerCleanup      = "SQL syntax validator"
)

type completerCall struct {
	ref      llm.ModelRef
	prompt   string
	jsonMode bool
}

// fakeCompleter returns a scripted response for whichever stage marker the
// prompt contains, and records every call for assertions.
type fakeCompleter struct {
	responses map[string]string
	calls     []completerCall
}

func (f *fakeCompleter) Complete(_ context.Context, ref llm.ModelRef, prompt string, jsonMode bool) string {
	f.calls = append(f.calls, completerCall{ref: ref, prompt: prompt, jsonMode: jsonMode})
	for marker, resp := range f.responses {
		if strings.Contains(prompt, marker) {
			return resp
		}
	}
	return ""
}

// callFor returns the recorded call whose prompt contains the marker.
func (f *fakeCompleter) callFor(t *testing.T, marker string) completerCall {
	t.Helper()
	for _, c := range f.calls {
		if strings.Contains(c.prompt, marker) {
			return c
		}
	}
	t.Fatalf("no completion call matched marker %q", marker)
	return completerCall{}
}

func (f *fakeCompleter) called(marker string) bool {
	for _, c := range f.calls {
		if strings.Contains(c.prompt, marker) {
			return true
		}
	}
	return false
}

type fakeRetriever struct {
	ctx      retrieval.Context
	question string
}

func (f *fakeRetriever) Retrieve(_ context.Context, question string) retrieval.Context {
	f.question = question
	return f.ctx
}

func happyResponses() map[string]string {
	sql := "SELECT region, SUM(amount) AS total_sales FROM orders WHERE order_date BETWEEN '2025-04-01' AND '2025-06-30' GROUP BY region"
	return map[string]string{
		markerClean:        `{"cancel_process": false, "rephrased_question": "Calculate the sum of orders.amount for each orders.region for the period from 2025-04-01 to 2025-06-30."}`,
		markerTables:       `{"tables": ["orders"], "columns": ["orders.region", "orders.amount", "orders.order_date"], "reasoning": "sales figures live on orders"}`,
		markerJoins:        `{"joins": [], "reasoning": "only one table is required"}`,
		markerGrouping:     `{"group_by_columns": ["orders.region"], "aggregations": [{"function": "SUM", "column": "orders.amount", "alias": "total_sales"}], "reasoning": "per region implies grouping"}`,
		markerCalculations: `{"calculations": [], "reasoning": "no arithmetic between aggregations"}`,
		markerFiltering:    `{"filters": [{"column": "orders.order_date", "operator": "BETWEEN", "value": "2025-04-01 AND 2025-06-30"}], "reasoning": "explicit date bounds"}`,
		markerSQLGen:       sql,
		markerCleanup:      sql,
	}
}

func schemaOnlyContext() retrieval.Context {
	nodes := []model.RetrievalNode{{
		Text:       "Table: orders\nColumns: region TEXT, amount NUMERIC, order_date DATE",
		Collection: "schema_metadata",
	}}
	return retrieval.Context{
		Schema:      retrieval.JoinNodeText(nodes),
		Glossary:    retrieval.NoTermsFound,
		SchemaNodes: nodes,
	}
}

func newTestPipeline(t *testing.T, responses map[string]string) (*Pipeline, *fakeCompleter, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	completer := &fakeCompleter{responses: responses}
	retriever := &fakeRetriever{ctx: schemaOnlyContext()}
	return New(st, completer, retriever), completer, st
}
