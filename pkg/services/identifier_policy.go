package services

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/reportsql"
)

// identifierPolicy decides what happens to request identifiers that are not
// declared on a template or that look like injected SQL.
// Strict rejects them; otherwise they are logged and the request proceeds.
type identifierPolicy struct {
	strict bool
	logger *zap.Logger
}

func (p identifierPolicy) enforce(templateID int64, violations []reportsql.IdentifierViolation) error {
	if len(violations) == 0 {
		return nil
	}

	for _, v := range violations {
		fields := []zap.Field{
			zap.Int64("template_id", templateID),
			zap.String("identifier", v.Identifier),
			zap.String("role", v.Role),
			zap.String("reason", v.Reason),
			zap.Bool("strict", p.strict),
		}
		if v.Fingerprint != "" {
			fields = append(fields, zap.String("fingerprint", v.Fingerprint))
		}
		p.logger.Warn("Suspicious report identifier", fields...)
	}

	if p.strict {
		return reportsql.ViolationsError(violations)
	}
	return nil
}
