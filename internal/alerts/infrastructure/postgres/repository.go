package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// Repository is a Postgres-backed alert store. The open-episode
// invariant (at most one unresolved alert per line and family) is
// enforced with the same semantics as the in-memory repository.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(r *Repository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRepository constructs a repository with the default table name.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultAlertsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create inserts a new alert. An existing open episode for the same
// line and family rejects the insert.
func (r *Repository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil || alert.ID == "" {
		return errors.New("alert repo: missing alert id")
	}

	open, err := r.FindOpen(ctx, alert.LineID, alert.Type)
	if err != nil {
		return err
	}
	if open != nil {
		return fmt.Errorf("alert repo: open %s alert exists for line %s", alerts.Family(alert.Type), alert.LineID)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	line_id,
	alert_type,
	family,
	severity,
	message,
	last_value,
	is_resolved,
	resolved_at,
	created_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)`, r.table)

	_, err = r.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.LineID,
		alert.Type,
		alerts.Family(alert.Type),
		alert.Severity,
		alert.Message,
		alert.LastValue,
		alert.Resolved,
		nullTime(alert.ResolvedAt),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	return err
}

// Update overwrites the mutable fields of an existing alert.
func (r *Repository) Update(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil || alert.ID == "" {
		return errors.New("alert repo: missing alert id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET alert_type = $2,
	family = $3,
	severity = $4,
	message = $5,
	last_value = $6,
	is_resolved = $7,
	resolved_at = $8,
	updated_at = $9
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.Type,
		alerts.Family(alert.Type),
		alert.Severity,
		alert.Message,
		alert.LastValue,
		alert.Resolved,
		nullTime(alert.ResolvedAt),
		alert.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

// FindOpen returns the unresolved alert for the line and the type's
// family, or (nil, nil) when the line is clear.
func (r *Repository) FindOpen(ctx context.Context, lineID, alertType string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, line_id, alert_type, severity, message, last_value, is_resolved, resolved_at, created_at, updated_at
FROM %s
WHERE line_id = $1
	AND family = $2
	AND is_resolved = FALSE
LIMIT 1`, r.table)

	alert, err := r.scanOne(r.db.QueryRowContext(ctx, query, lineID, alerts.Family(alertType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// GetByID fetches one alert.
func (r *Repository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, line_id, alert_type, severity, message, last_value, is_resolved, resolved_at, created_at, updated_at
FROM %s
WHERE id = $1`, r.table)

	alert, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// MarkResolved closes an alert. Resolving twice keeps the original
// resolution time.
func (r *Repository) MarkResolved(ctx context.Context, id string, at time.Time) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET is_resolved = TRUE,
	resolved_at = $2,
	updated_at = $2
WHERE id = $1
	AND is_resolved = FALSE`, r.table)

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ListActive returns all unresolved alerts, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, line_id, alert_type, severity, message, last_value, is_resolved, resolved_at, created_at, updated_at
FROM %s
WHERE is_resolved = FALSE
ORDER BY created_at DESC`, r.table)

	return r.list(ctx, query)
}

// ListByTime returns all alerts created within [from, to], newest first.
func (r *Repository) ListByTime(ctx context.Context, from, to time.Time) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, line_id, alert_type, severity, message, last_value, is_resolved, resolved_at, created_at, updated_at
FROM %s
WHERE created_at >= $1
	AND created_at <= $2
ORDER BY created_at DESC`, r.table)

	return r.list(ctx, query, from, to)
}

// CountInWindow counts alerts raised for one line within [from, to].
func (r *Repository) CountInWindow(ctx context.Context, lineID string, from, to time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE line_id = $1
	AND created_at >= $2
	AND created_at <= $3`, r.table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, lineID, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]alerts.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		var (
			alert      alerts.Alert
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&alert.ID,
			&alert.LineID,
			&alert.Type,
			&alert.Severity,
			&alert.Message,
			&alert.LastValue,
			&alert.Resolved,
			&resolvedAt,
			&alert.CreatedAt,
			&alert.UpdatedAt,
		); err != nil {
			return nil, err
		}
		alert.ResolvedAt = resolvedAt.Time
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) scanOne(row *sql.Row) (*alerts.Alert, error) {
	var (
		alert      alerts.Alert
		resolvedAt sql.NullTime
	)
	if err := row.Scan(
		&alert.ID,
		&alert.LineID,
		&alert.Type,
		&alert.Severity,
		&alert.Message,
		&alert.LastValue,
		&alert.Resolved,
		&resolvedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}
	alert.ResolvedAt = resolvedAt.Time
	return &alert, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
