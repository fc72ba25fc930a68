// Package reportsql composes report SQL from a template's base query and the
// caller's filters, and holds the name/type heuristics used by the report UI.
//
// Composition is textual: the base query is never parsed. Filter values are
// always bound as named parameters; filter keys and group/aggregate field
// names are written into the statement as identifiers.
package reportsql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// Filter keys with fixed column mappings.
const (
	FilterDateFrom = "DateFrom"
	FilterDateTo   = "DateTo"

	// dateColumn is the column DateFrom/DateTo constrain.
	dateColumn = "InvoiceDate"

	// GroupedQueryAlias names the derived table in grouped reports.
	GroupedQueryAlias = "GroupedQuery"
)

var whereKeyword = regexp.MustCompile(`(?i)\bWHERE\b`)

// Condition is one bound predicate: <Column> <Operator> @<Param>.
type Condition struct {
	Column   string
	Operator string
	Param    string
}

// String renders the condition with an @-prefixed named placeholder.
func (c Condition) String() string {
	return c.Column + " " + c.Operator + " @" + c.Param
}

// Param is a named parameter bound to the raw filter value.
type Param struct {
	Name  string
	Value string
}

// GroupSpec turns a report into a grouped aggregate over the base query.
type GroupSpec struct {
	Field           string
	AggregateFields []string
	// Function is one of SUM, COUNT, AVG, MIN, MAX (case-insensitive, default SUM).
	Function string
}

// BuiltQuery is an executable statement and its parameter bindings.
type BuiltQuery struct {
	SQL        string
	Params     []Param
	Conditions []Condition
}

// NamedArgs returns the parameters keyed by name.
func (q *BuiltQuery) NamedArgs() map[string]any {
	args := make(map[string]any, len(q.Params))
	for _, p := range q.Params {
		args[p.Name] = p.Value
	}
	return args
}

// BuildConditions turns a filter map into conditions and parameters.
// Keys are visited in sorted order so the output is deterministic.
// Blank values are skipped entirely.
func BuildConditions(filters map[string]string) ([]Condition, []Param) {
	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		if strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]Condition, 0, len(keys))
	params := make([]Param, 0, len(keys))
	for _, key := range keys {
		switch key {
		case FilterDateFrom:
			conditions = append(conditions, Condition{Column: dateColumn, Operator: ">=", Param: key})
		case FilterDateTo:
			conditions = append(conditions, Condition{Column: dateColumn, Operator: "<=", Param: key})
		default:
			conditions = append(conditions, Condition{Column: key, Operator: "=", Param: key})
		}
		params = append(params, Param{Name: key, Value: filters[key]})
	}
	return conditions, params
}

// BuildReportQuery composes the statement for one report execution.
//
// Ungrouped: "<base> WHERE 1=1[ AND <cond>]...".
//
// Grouped: the base query minus its own WHERE becomes a derived table and the
// outer query aggregates it:
//
//	SELECT <group>, <aggs> FROM (<base>) AS GroupedQuery [WHERE <conds> AND <base where>] GROUP BY <group>
//
// Injected conditions always precede the base query's own WHERE text. When no
// filter applies nothing is injected (there is no 1=1 sentinel on this path).
func BuildReportQuery(baseSQL string, filters map[string]string, group *GroupSpec) (*BuiltQuery, error) {
	conditions, params := BuildConditions(filters)
	base := TrimStatement(baseSQL)

	if group == nil || strings.TrimSpace(group.Field) == "" {
		var sb strings.Builder
		sb.WriteString(base)
		sb.WriteString(" WHERE 1=1")
		for _, c := range conditions {
			sb.WriteString(" AND ")
			sb.WriteString(c.String())
		}
		return &BuiltQuery{SQL: sb.String(), Params: params, Conditions: conditions}, nil
	}

	fn, err := NormalizeAggregateFunction(group.Function)
	if err != nil {
		return nil, err
	}

	projection := []string{group.Field}
	if len(group.AggregateFields) == 0 {
		projection = append(projection, "COUNT(*) AS RecordCount")
	} else {
		suffix := strings.ToLower(fn)
		for _, f := range group.AggregateFields {
			projection = append(projection, fmt.Sprintf("%s(%s) AS %s_%s", fn, f, f, suffix))
		}
	}

	selectPart, baseWhere := SplitWhere(base)

	predicates := make([]string, 0, len(conditions)+1)
	for _, c := range conditions {
		predicates = append(predicates, c.String())
	}
	if baseWhere != "" {
		predicates = append(predicates, baseWhere)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM (%s) AS %s", strings.Join(projection, ", "), selectPart, GroupedQueryAlias)
	if len(predicates) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(predicates, " AND "))
	}
	sb.WriteString(" GROUP BY ")
	sb.WriteString(group.Field)

	return &BuiltQuery{SQL: sb.String(), Params: params, Conditions: conditions}, nil
}

// SplitWhere splits a statement at its first WHERE keyword.
// It returns the text before the keyword and the predicate text after it,
// both trimmed. Without a WHERE the predicate is empty.
func SplitWhere(sqlText string) (string, string) {
	loc := whereKeyword.FindStringIndex(sqlText)
	if loc == nil {
		return strings.TrimSpace(sqlText), ""
	}
	return strings.TrimSpace(sqlText[:loc[0]]), strings.TrimSpace(sqlText[loc[1]:])
}

// BuildOptionsQuery returns the statement listing the distinct values of key
// over the base query (its own WHERE dropped), used for dropdown filters.
func BuildOptionsQuery(baseSQL, key string) string {
	selectPart, _ := SplitWhere(TrimStatement(baseSQL))
	return fmt.Sprintf("SELECT DISTINCT %s FROM (%s) AS base", key, selectPart)
}

// NormalizeAggregateFunction upper-cases fn and checks it is supported.
// An empty function defaults to SUM.
func NormalizeAggregateFunction(fn string) (string, error) {
	fn = strings.ToUpper(strings.TrimSpace(fn))
	switch fn {
	case "":
		return models.AggregateSum, nil
	case models.AggregateSum, models.AggregateCount, models.AggregateAvg, models.AggregateMin, models.AggregateMax:
		return fn, nil
	}
	return "", fmt.Errorf("%w: unsupported aggregate function %q", apperrors.ErrInvalidRequest, fn)
}

// TrimStatement drops surrounding whitespace and trailing semicolons so
// clauses can be appended.
func TrimStatement(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "; \t\r\n")
}
