// Package pipeline turns a natural-language business question into a SQL
// query through a fixed sequence of narrow LLM reasoning stages.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/askdb/internal/llm"
	"github.com/sells-group/askdb/internal/model"
	"github.com/sells-group/askdb/internal/normalize"
	"github.com/sells-group/askdb/internal/retrieval"
	"github.com/sells-group/askdb/internal/store"
)

// noQueryMessage explains an empty generation result to the caller.
const noQueryMessage = "Could not generate a SQL query for that question based on the available context."

// Completer dispatches a prompt to a model backend. Backend failures degrade
// to an empty completion; they never surface as errors here.
type Completer interface {
	Complete(ctx context.Context, ref llm.ModelRef, prompt string, jsonMode bool) string
}

// ContextRetriever supplies grounding context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string) retrieval.Context
}

// Pipeline is the query-decomposition orchestrator. One Generate call runs
// the full stage sequence synchronously; progress is observable mid-run by
// polling the status store.
type Pipeline struct {
	store     store.Store
	completer Completer
	retriever ContextRetriever
	now       func() time.Time
}

// New creates a Pipeline.
func New(st store.Store, completer Completer, retriever ContextRetriever) *Pipeline {
	return &Pipeline{
		store:     st,
		completer: completer,
		retriever: retriever,
		now:       time.Now,
	}
}

// Stage response schemas. The first key is canonical; the rest are aliases
// the models are known to emit instead.
var (
	cleanQuestionSchema = normalize.Schema{Field: "rephrased_question", Keys: []string{"rephrased_question", "rephrased", "rephr_question"}}
	tablesSchema        = normalize.Schema{Field: "tables", Keys: []string{"tables", "table"}}
	joinsSchema         = normalize.Schema{Field: "joins", Keys: []string{"joins", "join"}}
	groupingSchema      = normalize.Schema{Field: "group_by_columns", Keys: []string{"group_by_columns", "group_by"}}
	calculationsSchema  = normalize.Schema{Field: "calculations", Keys: []string{"calculations", "calculation"}}
	filteringSchema     = normalize.Schema{Field: "filters", Keys: []string{"filters", "filtering"}}
)

// decisionStages lists the stages marked skipped when a run cancels early.
var decisionStages = []model.Stage{
	model.StageRetrieve,
	model.StageTables,
	model.StageJoins,
	model.StageGrouping,
	model.StageCalculations,
	model.StageFiltering,
	model.StageSQLGeneration,
	model.StageSQLCleanup,
}

// Generate runs the full pipeline for one question. Individual stage
// failures degrade to null decisions and the run continues; the only early
// exit is the clean-question stage judging the question non-answerable.
func (p *Pipeline) Generate(ctx context.Context, question, userID string, policy *StageModelPolicy) (*model.GenerateResult, error) {
	if policy == nil {
		policy = DefaultPolicy("ollama")
	}

	// A new run fully replaces any prior state for the user.
	if err := p.store.Clear(ctx, userID); err != nil {
		return nil, eris.Wrapf(err, "pipeline: clear status for %s", userID)
	}
	if err := p.store.Upsert(ctx, userID, map[string]string{model.FieldUserQuestion: question}); err != nil {
		return nil, eris.Wrapf(err, "pipeline: record question for %s", userID)
	}

	result := &model.GenerateResult{}

	cleaned, cancelled := p.cleanQuestion(ctx, question, userID, policy, result)
	result.CleanedQuestion = cleaned
	if cancelled {
		for _, stage := range decisionStages {
			result.Stages = append(result.Stages, model.StageOutcome{Stage: stage, Status: model.StageStatusSkipped})
		}
		return result, nil
	}

	rctx := p.retriever.Retrieve(ctx, cleaned)
	result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageRetrieve, Status: model.StageStatusSuccess})

	dc := model.DecisionContext{CleanedQuestion: cleaned}

	// Tables and columns
	tables := p.decide(ctx, userID, policy, result, model.StageTables, tablesSchema,
		buildTablesPrompt(rctx.Schema, cleaned))
	dc = dc.WithTables(tables)
	tablesJSON := tables.Stripped().JSON()

	// Joins
	joins := p.decide(ctx, userID, policy, result, model.StageJoins, joinsSchema,
		buildJoinsPrompt(rctx.Schema, cleaned, tablesJSON))
	dc = dc.WithJoins(joins)

	// Grouping and aggregations
	grouping := p.decide(ctx, userID, policy, result, model.StageGrouping, groupingSchema,
		buildGroupingPrompt(rctx.Schema, rctx.Glossary, cleaned, tablesJSON))
	dc = dc.WithGrouping(grouping)

	// Calculations over aggregation aliases
	calculations := p.decide(ctx, userID, policy, result, model.StageCalculations, calculationsSchema,
		buildCalculationsPrompt(rctx.Schema, rctx.Glossary, cleaned, tablesJSON, dc.AggregationsJSON()))
	dc = dc.WithCalculations(calculations)

	// Filtering (WHERE and HAVING)
	filtering := p.decide(ctx, userID, policy, result, model.StageFiltering, filteringSchema,
		buildFilteringPrompt(rctx.Schema, rctx.Glossary, cleaned, tablesJSON, dc.AggregationsJSON()))
	dc = dc.WithFiltering(filtering)

	// Consolidated SQL generation
	rawSQL := normalize.StripFences(p.completer.Complete(ctx,
		policy.For(model.StageSQLGeneration),
		buildSQLGenPrompt(rctx.Schema, rctx.Glossary, cleaned,
			tablesJSON,
			dc.Joins.Stripped().JSON(),
			dc.Grouping.Stripped().JSON(),
			dc.AggregationsJSON(),
			dc.Calculations.Stripped().JSON(),
			dc.Filtering.Stripped().JSON()),
		false))

	if rawSQL == "" {
		result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageSQLGeneration, Status: model.StageStatusParseFailed})
		result.Message = noQueryMessage
		p.persist(ctx, userID, model.FieldSQL, "")
		return result, nil
	}
	result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageSQLGeneration, Status: model.StageStatusSuccess})

	// Syntax-only cleanup, grounded on the exact context generation saw.
	// Falls back to the raw SQL rather than losing the result.
	finalSQL := normalize.StripFences(p.completer.Complete(ctx,
		policy.For(model.StageSQLCleanup),
		buildCleanSQLPrompt(rctx.Schema, rctx.Glossary, rawSQL),
		false))
	if finalSQL == "" {
		zap.L().Warn("SQL cleanup produced no output, keeping pre-cleanup SQL",
			zap.String("user_id", userID))
		result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageSQLCleanup, Status: model.StageStatusParseFailed})
		finalSQL = rawSQL
	} else {
		result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageSQLCleanup, Status: model.StageStatusSuccess})
	}

	p.persist(ctx, userID, model.FieldSQL, finalSQL)
	result.SQL = finalSQL

	return result, nil
}

// cleanQuestion runs the rephrase-or-cancel stage. It returns the question
// to use for the rest of the run and whether the run was cancelled.
func (p *Pipeline) cleanQuestion(ctx context.Context, question, userID string, policy *StageModelPolicy, result *model.GenerateResult) (string, bool) {
	currentDate := p.now().Format("2006-01-02")
	raw := p.completer.Complete(ctx, policy.For(model.StageCleanQuestion),
		buildCleanQuestionPrompt(currentDate, question), true)

	d := normalize.Parse(raw, cleanQuestionSchema)
	if d == nil {
		// Proceed with the original question rather than aborting.
		result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageCleanQuestion, Status: model.StageStatusParseFailed})
		p.persist(ctx, userID, model.FieldCleanedQuestion, model.Decision(nil).JSON())
		return question, false
	}

	if d.Bool("cancel_process", "cancel") {
		result.Cancelled = true
		result.CancelReason = d.String("rephrased_question")
		result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageCleanQuestion, Status: model.StageStatusSuccess, Decision: d})
		p.persist(ctx, userID, model.FieldCleanedQuestion, d.JSON())
		return "", true
	}

	cleaned := d.String("rephrased_question")
	if cleaned == "" {
		cleaned = question
	}
	d["rephrased_question"] = cleaned

	result.Stages = append(result.Stages, model.StageOutcome{Stage: model.StageCleanQuestion, Status: model.StageStatusSuccess, Decision: d})
	p.persist(ctx, userID, model.FieldCleanedQuestion, d.JSON())
	return cleaned, false
}

// decide runs one identification stage: complete, normalize, persist,
// record. A nil decision is persisted as "null" and the run continues.
func (p *Pipeline) decide(ctx context.Context, userID string, policy *StageModelPolicy, result *model.GenerateResult, stage model.Stage, schema normalize.Schema, prompt string) model.Decision {
	raw := p.completer.Complete(ctx, policy.For(stage), prompt, true)
	d := normalize.Parse(raw, schema)

	status := model.StageStatusSuccess
	if d == nil {
		status = model.StageStatusParseFailed
	}
	result.Stages = append(result.Stages, model.StageOutcome{Stage: stage, Status: status, Decision: d})

	p.persist(ctx, userID, string(stage), d.JSON())
	return d
}

// persist writes one status field. Store failures degrade to a log entry:
// the status store is an observability surface, not a dependency the run
// itself needs to finish.
func (p *Pipeline) persist(ctx context.Context, userID, field, value string) {
	if err := p.store.Upsert(ctx, userID, map[string]string{field: value}); err != nil {
		zap.L().Warn("status upsert failed",
			zap.String("user_id", userID),
			zap.String("field", field),
			zap.Error(err))
	}
}
