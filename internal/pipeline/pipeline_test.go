package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/askdb/internal/llm"
	"github.com/sells-group/askdb/internal/model"
)

func TestGenerateHappyPath(t *testing.T) {
	p, completer, st := newTestPipeline(t, happyResponses())
	ctx := context.Background()

	result, err := p.Generate(ctx, "What are total sales per region last quarter?", "u1", nil)
	require.NoError(t, err)

	assert.False(t, result.Cancelled)
	assert.Contains(t, result.SQL, "GROUP BY region")
	assert.Contains(t, result.SQL, "BETWEEN '2025-04-01' AND '2025-06-30'")
	assert.Contains(t, result.CleanedQuestion, "2025-04-01")

	for _, outcome := range result.Stages {
		assert.Equal(t, model.StageStatusSuccess, outcome.Status, string(outcome.Stage))
	}

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "What are total sales per region last quarter?", row.UserQuestion)
	assert.Contains(t, row.CleanedQuestion, "rephrased_question")
	assert.Contains(t, row.Tables, "orders")
	assert.Contains(t, row.Grouping, "orders.region")
	assert.Contains(t, row.SQL, "GROUP BY region")

	// Later prompts carry the accumulated decisions with reasoning stripped.
	joinsCall := completer.callFor(t, markerJoins)
	assert.Contains(t, joinsCall.prompt, `"orders.region"`)
	assert.NotContains(t, joinsCall.prompt, "sales figures live on orders")
	assert.True(t, joinsCall.jsonMode)

	// Calculations and filtering see the aggregation aliases.
	calcCall := completer.callFor(t, markerCalculations)
	assert.Contains(t, calcCall.prompt, "total_sales")
	filterCall := completer.callFor(t, markerFiltering)
	assert.Contains(t, filterCall.prompt, "total_sales")

	// SQL generation and cleanup run outside JSON mode.
	assert.False(t, completer.callFor(t, markerSQLGen).jsonMode)
	assert.False(t, completer.callFor(t, markerCleanup).jsonMode)
}

func TestGenerateCancellation(t *testing.T) {
	responses := map[string]string{
		markerClean: `{"cancel_process": true, "rephrased_question": "The input is conversational, not a data question."}`,
	}
	p, completer, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "hello", "u1", nil)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, "The input is conversational, not a data question.", result.CancelReason)
	assert.Empty(t, result.SQL)

	// No stage after clean-question runs.
	assert.False(t, completer.called(markerTables))
	assert.False(t, completer.called(markerSQLGen))
	for _, outcome := range result.Stages[1:] {
		assert.Equal(t, model.StageStatusSkipped, outcome.Status, string(outcome.Stage))
	}

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "hello", row.UserQuestion)
	assert.Contains(t, row.CleanedQuestion, `"cancel_process":true`)
	assert.Equal(t, model.NotStarted, row.Tables)
	assert.Equal(t, model.NotStarted, row.Joins)
	assert.Equal(t, model.NotStarted, row.SQL)
}

func TestGenerateMalformedJoinsContinues(t *testing.T) {
	responses := happyResponses()
	responses[markerJoins] = "I think you should join orders to itself."
	p, completer, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "total sales per region", "u1", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.SQL)
	assert.True(t, completer.called(markerSQLGen))

	var joinsStatus model.StageStatus
	for _, outcome := range result.Stages {
		if outcome.Stage == model.StageJoins {
			joinsStatus = outcome.Status
		}
	}
	assert.Equal(t, model.StageStatusParseFailed, joinsStatus)

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "null", row.Joins)
	assert.NotEqual(t, model.NotStarted, row.SQL)
}

func TestGenerateEmptySQL(t *testing.T) {
	responses := happyResponses()
	responses[markerSQLGen] = ""
	p, completer, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "total sales per region", "u1", nil)
	require.NoError(t, err)

	assert.Empty(t, result.SQL)
	assert.False(t, result.Cancelled)
	assert.Equal(t, noQueryMessage, result.Message)
	assert.False(t, completer.called(markerCleanup))

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, row.SQL)
}

func TestGenerateBacktickOnlySQL(t *testing.T) {
	responses := happyResponses()
	responses[markerSQLGen] = "```"
	p, completer, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "total sales per region", "u1", nil)
	require.NoError(t, err)

	// A fence with nothing inside is an empty generation, not a crash.
	assert.Empty(t, result.SQL)
	assert.Equal(t, noQueryMessage, result.Message)
	assert.False(t, completer.called(markerCleanup))

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, row.SQL)
}

func TestGenerateCleanupFallback(t *testing.T) {
	responses := happyResponses()
	responses[markerCleanup] = ""
	p, _, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "total sales per region", "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, responses[markerSQLGen], result.SQL)

	var cleanupStatus model.StageStatus
	for _, outcome := range result.Stages {
		if outcome.Stage == model.StageSQLCleanup {
			cleanupStatus = outcome.Status
		}
	}
	assert.Equal(t, model.StageStatusParseFailed, cleanupStatus)

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, responses[markerSQLGen], row.SQL)
}

func TestGenerateIdempotentReset(t *testing.T) {
	p, _, st := newTestPipeline(t, happyResponses())
	ctx := context.Background()

	_, err := p.Generate(ctx, "first question about sales", "u1", nil)
	require.NoError(t, err)

	// Re-run against the same store with a cancelling second question.
	completer := &fakeCompleter{responses: map[string]string{
		markerClean: `{"cancel_process": true, "rephrased_question": "Not a data question."}`,
	}}
	p = New(st, completer, &fakeRetriever{ctx: schemaOnlyContext()})

	_, err = p.Generate(ctx, "hello again", "u1", nil)
	require.NoError(t, err)

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hello again", row.UserQuestion)
	assert.Equal(t, model.NotStarted, row.Tables)
	assert.Equal(t, model.NotStarted, row.SQL)
}

func TestGenerateCleanQuestionParseFailure(t *testing.T) {
	responses := happyResponses()
	responses[markerClean] = "sure, happy to help!"
	p, _, st := newTestPipeline(t, responses)
	ctx := context.Background()

	result, err := p.Generate(ctx, "total sales per region", "u1", nil)
	require.NoError(t, err)

	// Falls back to the original question for the rest of the run.
	assert.Equal(t, "total sales per region", result.CleanedQuestion)
	assert.NotEmpty(t, result.SQL)

	row, err := st.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "null", row.CleanedQuestion)
}

func TestGenerateRephrasedAliasKey(t *testing.T) {
	responses := happyResponses()
	responses[markerClean] = `{"cancel_process": false, "rephrased": "Sum orders.amount per orders.region."}`
	p, _, _ := newTestPipeline(t, responses)

	result, err := p.Generate(context.Background(), "sales by region", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sum orders.amount per orders.region.", result.CleanedQuestion)
}

func TestGenerateContextStability(t *testing.T) {
	p, completer, _ := newTestPipeline(t, happyResponses())

	_, err := p.Generate(context.Background(), "total sales per region", "u1", nil)
	require.NoError(t, err)

	schema := schemaOnlyContext().Schema
	genCall := completer.callFor(t, markerSQLGen)
	cleanupCall := completer.callFor(t, markerCleanup)
	assert.Contains(t, genCall.prompt, schema)
	assert.Contains(t, cleanupCall.prompt, schema)
}

func TestGeneratePolicyRouting(t *testing.T) {
	p, completer, _ := newTestPipeline(t, happyResponses())

	policy := &StageModelPolicy{
		Default: llm.ModelRef{Backend: "ollama", Model: "my-phi4:latest"},
		Stages: map[model.Stage]llm.ModelRef{
			model.StageSQLGeneration: {Backend: "gemini", Model: "gemini-2.5-pro"},
		},
	}

	_, err := p.Generate(context.Background(), "total sales per region", "u1", policy)
	require.NoError(t, err)

	assert.Equal(t, "gemini", completer.callFor(t, markerSQLGen).ref.Backend)
	assert.Equal(t, "gemini-2.5-pro", completer.callFor(t, markerSQLGen).ref.Model)
	assert.Equal(t, "ollama", completer.callFor(t, markerTables).ref.Backend)
}

func TestGenerateRetrievesWithCleanedQuestion(t *testing.T) {
	_, _, st := newTestPipeline(t, happyResponses())

	retriever := &fakeRetriever{ctx: schemaOnlyContext()}
	completer := &fakeCompleter{responses: happyResponses()}
	p := New(st, completer, retriever)

	_, err := p.Generate(context.Background(), "sales last quarter", "u1", nil)
	require.NoError(t, err)

	// Retrieval runs on the rephrased question, not the raw input.
	assert.True(t, strings.Contains(retriever.question, "2025-04-01"))
}

func TestPolicyFor(t *testing.T) {
	policy := &StageModelPolicy{
		Default: llm.ModelRef{Backend: "ollama"},
		Stages: map[model.Stage]llm.ModelRef{
			model.StageTables: {Backend: "anthropic", Model: "claude"},
		},
	}

	assert.Equal(t, "anthropic", policy.For(model.StageTables).Backend)
	assert.Equal(t, "ollama", policy.For(model.StageJoins).Backend)
}
