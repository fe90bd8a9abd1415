package models

import (
	"encoding/json"
	"strings"
)

// QueryLogic is the combinator applied across a structured query's filters.
type QueryLogic string

const (
	QueryLogicAnd QueryLogic = "AND"
	QueryLogicOr  QueryLogic = "OR"
)

// FilterOperator is one predicate operator of a structured query.
type FilterOperator string

const (
	OperatorEquals         FilterOperator = "equals"
	OperatorNotEquals      FilterOperator = "notEquals"
	OperatorContains       FilterOperator = "contains"
	OperatorGreaterThan    FilterOperator = "greaterThan"
	OperatorLessThan       FilterOperator = "lessThan"
	OperatorGreaterOrEqual FilterOperator = "greaterOrEqual"
	OperatorLessOrEqual    FilterOperator = "lessOrEqual"
	OperatorIsEmpty        FilterOperator = "isEmpty"
	OperatorIsNotEmpty     FilterOperator = "isNotEmpty"
)

// QueryFilter is a single field/operator/value predicate.
type QueryFilter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value,omitempty"`
}

// StructuredQuery combines filters with AND/OR logic. An empty filter list
// matches all records regardless of logic.
type StructuredQuery struct {
	Logic   QueryLogic    `json:"logic"`
	Filters []QueryFilter `json:"filters"`
}

// StepQuery is the tagged variant stored on a schedule step: either a
// structured query or a legacy free-text string. Stored schedules predate the
// structured format, so both forms are supported indefinitely.
type StepQuery struct {
	Structured *StructuredQuery
	Text       string
}

// IsZero reports whether the step carries no usable query at all, in which
// case every record matches.
func (q StepQuery) IsZero() bool {
	return q.Structured == nil && strings.TrimSpace(q.Text) == ""
}

func (q StepQuery) MarshalJSON() ([]byte, error) {
	if q.Structured != nil {
		return json.Marshal(q.Structured)
	}

	if q.Text == "" {
		return []byte("null"), nil
	}

	return json.Marshal(q.Text)
}

func (q *StepQuery) UnmarshalJSON(data []byte) error {
	q.Structured = nil
	q.Text = ""

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		q.Text = text

		return nil
	}

	var structured StructuredQuery
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}

	if structured.Logic == "" {
		structured.Logic = QueryLogicAnd
	}

	q.Structured = &structured

	return nil
}
