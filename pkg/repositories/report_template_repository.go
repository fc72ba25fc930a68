package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/database"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// ReportTemplateRepository defines data access for report templates.
// A template spans four tables (header, fields, filters, source) and is only
// ever written as a whole inside one transaction.
type ReportTemplateRepository interface {
	// List returns the id and name of every template, ordered by id.
	List(ctx context.Context) ([]models.TemplateSummary, error)

	// GetFull assembles a template from all four tables.
	// Returns apperrors.ErrNotFound if the template row does not exist.
	GetFull(ctx context.Context, id int64) (*models.ReportTemplate, error)

	// GetBaseQuery returns only the stored SQL source.
	GetBaseQuery(ctx context.Context, id int64) (string, error)

	// FindIDByName returns the id of the lowest-id template with the given name.
	FindIDByName(ctx context.Context, name string) (int64, error)

	// Save creates a template and returns its generated id.
	Save(ctx context.Context, name, sqlQuery string, fields []string, filters []models.FilterDefinition) (int64, error)

	// Update replaces name, source, fields and filters of an existing template.
	Update(ctx context.Context, id int64, name, sqlQuery string, fields []string, filters []models.FilterDefinition) error

	// Delete removes a template; fields, filters and source cascade.
	Delete(ctx context.Context, id int64) error
}

type reportTemplateRepository struct {
	db     *database.DB
	logger *zap.Logger
}

var _ ReportTemplateRepository = (*reportTemplateRepository)(nil)

// NewReportTemplateRepository creates a template repository on the engine database.
func NewReportTemplateRepository(db *database.DB, logger *zap.Logger) ReportTemplateRepository {
	return &reportTemplateRepository{db: db, logger: logger}
}

func (r *reportTemplateRepository) List(ctx context.Context) ([]models.TemplateSummary, error) {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	rows, err := scope.Conn.Query(ctx, `SELECT id, name FROM report_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]models.TemplateSummary, 0)
	for rows.Next() {
		var t models.TemplateSummary
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	return templates, nil
}

func (r *reportTemplateRepository) GetFull(ctx context.Context, id int64) (*models.ReportTemplate, error) {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	tmpl := &models.ReportTemplate{ID: id}
	err = scope.Conn.QueryRow(ctx,
		`SELECT name, created_at FROM report_templates WHERE id = $1`, id,
	).Scan(&tmpl.Name, &tmpl.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	err = scope.Conn.QueryRow(ctx,
		`SELECT sql_query FROM report_template_sources WHERE template_id = $1`, id,
	).Scan(&tmpl.SQLQuery)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get template source: %w", err)
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT field_name FROM report_template_fields WHERE template_id = $1 ORDER BY sort_order, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template fields: %w", err)
	}
	fields, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan template fields: %w", err)
	}
	tmpl.Fields = fields

	rows, err = scope.Conn.Query(ctx,
		`SELECT filter_key, filter_type FROM report_template_filters WHERE template_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template filters: %w", err)
	}
	filters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FilterDefinition, error) {
		var f models.FilterDefinition
		var filterType string
		if err := row.Scan(&f.Key, &filterType); err != nil {
			return f, err
		}
		f.Label = f.Key
		f.Type = models.FilterType(filterType)
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan template filters: %w", err)
	}
	tmpl.Filters = filters

	return tmpl, nil
}

func (r *reportTemplateRepository) GetBaseQuery(ctx context.Context, id int64) (string, error) {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return "", err
	}
	defer scope.Close()

	var sqlQuery string
	err = scope.Conn.QueryRow(ctx,
		`SELECT sql_query FROM report_template_sources WHERE template_id = $1`, id,
	).Scan(&sqlQuery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("source for template %d: %w", id, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get template source: %w", err)
	}

	return sqlQuery, nil
}

func (r *reportTemplateRepository) FindIDByName(ctx context.Context, name string) (int64, error) {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return 0, err
	}
	defer scope.Close()

	var id int64
	err = scope.Conn.QueryRow(ctx,
		`SELECT id FROM report_templates WHERE name = $1 ORDER BY id LIMIT 1`, name,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("template %q: %w", name, apperrors.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to find template: %w", err)
	}

	return id, nil
}

func (r *reportTemplateRepository) Save(ctx context.Context, name, sqlQuery string, fields []string, filters []models.FilterDefinition) (int64, error) {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return 0, err
	}
	defer scope.Close()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO report_templates (name, description, created_at) VALUES ($1, '', NOW()) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, r.txFailed("insert template", err)
	}

	if err := insertFields(ctx, tx, id, fields); err != nil {
		return 0, r.txFailed("insert fields", err)
	}
	if err := insertFilters(ctx, tx, id, filters); err != nil {
		return 0, r.txFailed("insert filters", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO report_template_sources (template_id, sql_query) VALUES ($1, $2)`, id, sqlQuery)
	if err != nil {
		return 0, r.txFailed("insert source", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, r.txFailed("commit", err)
	}

	return id, nil
}

func (r *reportTemplateRepository) Update(ctx context.Context, id int64, name, sqlQuery string, fields []string, filters []models.FilterDefinition) error {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	tag, err := tx.Exec(ctx, `UPDATE report_templates SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return r.txFailed("update template", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM report_template_fields WHERE template_id = $1`, id); err != nil {
		return r.txFailed("delete fields", err)
	}
	if err := insertFields(ctx, tx, id, fields); err != nil {
		return r.txFailed("insert fields", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM report_template_filters WHERE template_id = $1`, id); err != nil {
		return r.txFailed("delete filters", err)
	}
	if err := insertFilters(ctx, tx, id, filters); err != nil {
		return r.txFailed("insert filters", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO report_template_sources (template_id, sql_query) VALUES ($1, $2)
		ON CONFLICT (template_id) DO UPDATE SET sql_query = EXCLUDED.sql_query`,
		id, sqlQuery)
	if err != nil {
		return r.txFailed("upsert source", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return r.txFailed("commit", err)
	}

	return nil
}

func (r *reportTemplateRepository) Delete(ctx context.Context, id int64) error {
	scope, err := r.db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM report_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

// txFailed logs the failing step and returns a transaction failure.
// The driver error is kept out of the returned message.
func (r *reportTemplateRepository) txFailed(step string, err error) error {
	r.logger.Error("Report template transaction failed",
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%s: %w", step, apperrors.ErrTransactionFailed)
}

func insertFields(ctx context.Context, tx pgx.Tx, templateID int64, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, field := range fields {
		batch.Queue(
			`INSERT INTO report_template_fields (template_id, field_name, display_name, sort_order) VALUES ($1, $2, $2, $3)`,
			templateID, field, i+1)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func insertFilters(ctx context.Context, tx pgx.Tx, templateID int64, filters []models.FilterDefinition) error {
	if len(filters) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range filters {
		batch.Queue(
			`INSERT INTO report_template_filters (template_id, filter_key, filter_type, filter_value) VALUES ($1, $2, $3, '')`,
			templateID, f.Key, string(f.Type))
	}
	return tx.SendBatch(ctx, batch).Close()
}
