package model

// Stage identifies one step of the query-decomposition pipeline. The value
// doubles as the status-store column name for stages that persist a decision.
type Stage string

const (
	StageCleanQuestion Stage = "cleaned_question"
	StageRetrieve      Stage = "retrieve"
	StageTables        Stage = "tables"
	StageJoins         Stage = "joins"
	StageGrouping      Stage = "grouping"
	StageCalculations  Stage = "calculations"
	StageFiltering     Stage = "filtering"
	StageSQLGeneration Stage = "sql_generation"
	StageSQLCleanup    Stage = "sql_cleanup"
)

// StageStatus records how a stage concluded. A parse failure is an observable
// outcome, not an implicit nil: the run continues but the status is kept.
type StageStatus string

const (
	StageStatusSuccess     StageStatus = "success"
	StageStatusParseFailed StageStatus = "parse_failed"
	StageStatusSkipped     StageStatus = "skipped"
)

// StageOutcome pairs a stage with its status and (possibly nil) decision.
type StageOutcome struct {
	Stage    Stage       `json:"stage"`
	Status   StageStatus `json:"status"`
	Decision Decision    `json:"decision,omitempty"`
}
