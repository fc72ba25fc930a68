package reportsql

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// Roles an identifier can play in a report request.
const (
	RoleFilterKey      = "filter key"
	RoleGroupField     = "group field"
	RoleAggregateField = "aggregate field"
)

// IdentifierViolation describes one request identifier that failed a check.
type IdentifierViolation struct {
	Identifier  string
	Role        string
	Reason      string
	Fingerprint string // libinjection fingerprint, when the reason is an injection match
}

func (v IdentifierViolation) String() string {
	return fmt.Sprintf("%s %q: %s", v.Role, v.Identifier, v.Reason)
}

// identifierChecker matches identifiers against a template's declarations.
type identifierChecker struct {
	fields     map[string]bool
	filterKeys map[string]bool
	violations []IdentifierViolation
}

func newIdentifierChecker(tmpl *models.ReportTemplate) *identifierChecker {
	c := &identifierChecker{
		fields:     make(map[string]bool, len(tmpl.Fields)),
		filterKeys: make(map[string]bool, len(tmpl.Filters)),
	}
	for _, f := range tmpl.Fields {
		c.fields[f] = true
	}
	for _, f := range tmpl.Filters {
		c.filterKeys[f.Key] = true
	}
	return c
}

func (c *identifierChecker) check(id, role string, declared bool) {
	if v := checkInjection(id, role); v != nil {
		c.violations = append(c.violations, *v)
		return
	}
	if !declared {
		c.violations = append(c.violations, IdentifierViolation{Identifier: id, Role: role, Reason: "not declared on the template"})
	}
}

func (c *identifierChecker) checkFilterKey(key string) {
	c.check(key, RoleFilterKey, c.fields[key] || c.filterKeys[key])
}

// CheckIdentifiers inspects every identifier a request writes into the
// statement: non-blank filter keys (DateFrom/DateTo excluded, they map to a
// fixed column), the group field and the aggregate fields.
//
// An identifier is a violation when it is not declared on the template or when
// libinjection flags it. Filter keys may match either a declared field or a
// declared filter key.
func CheckIdentifiers(tmpl *models.ReportTemplate, req *models.ReportRequest) []IdentifierViolation {
	c := newIdentifierChecker(tmpl)

	conditions, _ := BuildConditions(req.Filters)
	for _, cond := range conditions {
		if cond.Param == FilterDateFrom || cond.Param == FilterDateTo {
			continue
		}
		c.checkFilterKey(cond.Param)
	}

	if group := strings.TrimSpace(req.GroupByField); group != "" {
		c.check(req.GroupByField, RoleGroupField, c.fields[req.GroupByField])
		for _, f := range req.AggregateFields {
			c.check(f, RoleAggregateField, c.fields[f])
		}
	}

	return c.violations
}

// CheckOptionKey applies the filter key rules to the column dropdown option
// discovery selects.
func CheckOptionKey(tmpl *models.ReportTemplate, key string) []IdentifierViolation {
	c := newIdentifierChecker(tmpl)
	c.checkFilterKey(key)
	return c.violations
}

// ViolationsError folds violations into one ErrInvalidRequest. Nil when empty.
func ViolationsError(violations []IdentifierViolation) error {
	if len(violations) == 0 {
		return nil
	}
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidRequest, strings.Join(parts, "; "))
}

func checkInjection(id, role string) *IdentifierViolation {
	isSQLi, fingerprint := libinjection.IsSQLi(id)
	if !isSQLi {
		return nil
	}
	return &IdentifierViolation{
		Identifier:  id,
		Role:        role,
		Reason:      "matches a SQL injection pattern",
		Fingerprint: string(fingerprint),
	}
}
