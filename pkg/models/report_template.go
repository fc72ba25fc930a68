package models

import "time"

// FilterType is the input widget a filter is rendered with.
type FilterType string

const (
	FilterTypeText      FilterType = "text"
	FilterTypeDate      FilterType = "date"
	FilterTypeDropdown  FilterType = "dropdown"
	FilterTypeDateRange FilterType = "daterange"
)

// IsValid reports whether t is one of the known filter types.
func (t FilterType) IsValid() bool {
	switch t {
	case FilterTypeText, FilterTypeDate, FilterTypeDropdown, FilterTypeDateRange:
		return true
	}
	return false
}

// FilterDefinition is a user-facing filter declared on a template.
// Options are only populated for dropdown filters and are computed from the
// data on demand; they are never persisted.
type FilterDefinition struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Type    FilterType `json:"type"`
	Options []string   `json:"options,omitempty"`
}

// ReportTemplate is a stored base query plus its advisory field list and filters.
// Fields are UI metadata only: the SQL source is authoritative at execution time.
type ReportTemplate struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	SQLQuery  string             `json:"sqlQuery"`
	Fields    []string           `json:"fields"`
	Filters   []FilterDefinition `json:"filters"`
	CreatedAt time.Time          `json:"createdAt,omitzero"`
}

// TemplateSummary is the identity and name of a template.
type TemplateSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TemplateMetadata is the field list and filter definitions of a template.
type TemplateMetadata struct {
	Fields  []string           `json:"fields"`
	Filters []FilterDefinition `json:"filters"`
}

// GroupMetadata lists the fields a UI may offer for grouping and numeric aggregation.
type GroupMetadata struct {
	GroupableFields []string `json:"groupableFields"`
	NumericFields   []string `json:"numericFields"`
}
