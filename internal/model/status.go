package model

import "time"

// NotStarted is the sentinel value for status-store fields the pipeline has
// not reached yet. An absent/sentinel field means "not yet reached", never
// "failed": failures are stored as a populated field holding "null".
const NotStarted = "Not started"

// Status-store field names, in pipeline order.
const (
	FieldUserQuestion    = "user_question"
	FieldCleanedQuestion = "cleaned_question"
	FieldTables          = "tables"
	FieldJoins           = "joins"
	FieldGrouping        = "grouping"
	FieldCalculations    = "calculations"
	FieldFiltering       = "filtering"
	FieldSQL             = "sql"
)

// StatusFields lists the writable columns in pipeline order. Upserts are
// restricted to this whitelist.
var StatusFields = []string{
	FieldUserQuestion,
	FieldCleanedQuestion,
	FieldTables,
	FieldJoins,
	FieldGrouping,
	FieldCalculations,
	FieldFiltering,
	FieldSQL,
}

// StatusRow is the durable per-user record of pipeline progress, read by
// polling consumers. One row per user, last write wins.
type StatusRow struct {
	UserID          string    `json:"user_id"`
	UserQuestion    string    `json:"user_question"`
	CleanedQuestion string    `json:"cleaned_question"`
	Tables          string    `json:"tables"`
	Joins           string    `json:"joins"`
	Grouping        string    `json:"grouping"`
	Calculations    string    `json:"calculations"`
	Filtering       string    `json:"filtering"`
	SQL             string    `json:"sql"`
	LastUpdated     time.Time `json:"last_updated"`
}
