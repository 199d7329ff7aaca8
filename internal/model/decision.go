package model

import "encoding/json"

// Decision is the JSON-object-shaped payload produced by a single pipeline
// stage. A nil Decision means the stage produced no usable output.
type Decision map[string]any

// Stripped returns a copy of the decision without the reasoning field.
// Reasoning is display-only: it is kept in the status store for the UI but
// never folded into a later stage's prompt.
func (d Decision) Stripped() Decision {
	if d == nil {
		return nil
	}
	out := make(Decision, len(d))
	for k, v := range d {
		if k == "reasoning" {
			continue
		}
		out[k] = v
	}
	return out
}

// ValueAlt returns the first non-nil value among the given keys.
func (d Decision) ValueAlt(keys ...string) any {
	if d == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Bool reads a boolean field, tolerating absence.
func (d Decision) Bool(keys ...string) bool {
	b, _ := d.ValueAlt(keys...).(bool)
	return b
}

// String reads a string field, tolerating absence.
func (d Decision) String(keys ...string) string {
	s, _ := d.ValueAlt(keys...).(string)
	return s
}

// JSON renders the decision as compact JSON. A nil decision renders as the
// literal "null", which is what the status store holds for a failed stage.
func (d Decision) JSON() string {
	if d == nil {
		return "null"
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "null"
	}
	return string(b)
}

// DecisionContext carries the accumulated decisions of the run. It is an
// immutable value: each With* method returns an updated copy, so stages fold
// their output forward without hidden mutation.
type DecisionContext struct {
	CleanedQuestion string
	Tables          Decision
	Joins           Decision
	Grouping        Decision
	Aggregations    any
	Calculations    Decision
	Filtering       Decision
}

// WithTables returns a copy with the tables/columns decision set.
func (dc DecisionContext) WithTables(d Decision) DecisionContext {
	dc.Tables = d
	return dc
}

// WithJoins returns a copy with the join decision set.
func (dc DecisionContext) WithJoins(d Decision) DecisionContext {
	dc.Joins = d
	return dc
}

// WithGrouping returns a copy with the grouping decision set. The aggregation
// list is lifted out because the calculations and filtering stages consume it
// directly so that formulas and HAVING conditions can reference aggregate
// aliases.
func (dc DecisionContext) WithGrouping(d Decision) DecisionContext {
	dc.Grouping = d
	dc.Aggregations = d.ValueAlt("aggregations", "aggregation")
	return dc
}

// WithCalculations returns a copy with the calculations decision set.
func (dc DecisionContext) WithCalculations(d Decision) DecisionContext {
	dc.Calculations = d
	return dc
}

// WithFiltering returns a copy with the filtering decision set.
func (dc DecisionContext) WithFiltering(d Decision) DecisionContext {
	dc.Filtering = d
	return dc
}

// AggregationsJSON renders the aggregation list for prompt injection.
func (dc DecisionContext) AggregationsJSON() string {
	if dc.Aggregations == nil {
		return "[]"
	}
	b, err := json.Marshal(dc.Aggregations)
	if err != nil {
		return "[]"
	}
	return string(b)
}
