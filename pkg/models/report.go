package models

import (
	"bytes"
	"encoding/json"
)

// Aggregate functions accepted in a ReportRequest.
const (
	AggregateSum   = "SUM"
	AggregateCount = "COUNT"
	AggregateAvg   = "AVG"
	AggregateMin   = "MIN"
	AggregateMax   = "MAX"
)

// ReportRequest asks for one execution of a template.
// Blank filter values are treated as "not applied". An empty VisibleColumns
// means every column the query returns.
type ReportRequest struct {
	TemplateID        int64             `json:"templateId"`
	Filters           map[string]string `json:"filters"`
	GroupByField      string            `json:"groupByField,omitempty"`
	AggregateFields   []string          `json:"aggregateFields,omitempty"`
	AggregateFunction string            `json:"aggregateFunction,omitempty"`
	VisibleColumns    []string          `json:"visibleColumns,omitempty"`
}

// Cell is one field of a result row.
type Cell struct {
	Field string
	Value any
}

// ResultRow is an ordered field -> value mapping. The field set and order
// come from the executed statement, not from any static schema.
type ResultRow []Cell

// Get returns the value of field and whether the row has it.
func (r ResultRow) Get(field string) (any, bool) {
	for _, c := range r {
		if c.Field == field {
			return c.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the row as a JSON object with keys in column order.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ReportResult is a materialized report: the column order plus the rows.
type ReportResult struct {
	Columns []string    `json:"columns"`
	Rows    []ResultRow `json:"rows"`
}

// Project restricts the result to the visible columns, in the given order.
// Columns the result does not contain are silently skipped. An empty list
// returns the full column set in execution order.
func (r *ReportResult) Project(visible []string) *ReportResult {
	if len(visible) == 0 {
		return r
	}

	present := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		present[c] = true
	}

	columns := make([]string, 0, len(visible))
	seen := make(map[string]bool, len(visible))
	for _, c := range visible {
		if present[c] && !seen[c] {
			columns = append(columns, c)
			seen[c] = true
		}
	}

	rows := make([]ResultRow, len(r.Rows))
	for i, row := range r.Rows {
		projected := make(ResultRow, 0, len(columns))
		for _, c := range columns {
			if v, ok := row.Get(c); ok {
				projected = append(projected, Cell{Field: c, Value: v})
			}
		}
		rows[i] = projected
	}

	return &ReportResult{Columns: columns, Rows: rows}
}

// SchemaAnalysisResult describes the output schema of an arbitrary SELECT.
// ErrorMessage is set only when IsValid is false.
type SchemaAnalysisResult struct {
	Fields       []string          `json:"fields,omitempty"`
	FieldTypes   map[string]string `json:"fieldTypes,omitempty"`
	IsValid      bool              `json:"isValid"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}
