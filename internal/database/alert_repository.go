package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// AlertRepository handles alert data operations
type AlertRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB, logger *slog.Logger) *AlertRepository {
	return &AlertRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create persists a new alert
func (r *AlertRepository) Create(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, name, description, severity, status, source,
			triggered_at, version, created_at, updated_at, updated_by
		) VALUES (
			:id, :name, :description, :severity, :status, :source,
			:triggered_at, :version, :created_at, :updated_at, :updated_by
		)`

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Version == 0 {
		a.Version = 1
	}

	_, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		r.logger.Error("Failed to create alert", "alert_id", a.ID, "error", err)
		return fmt.Errorf("failed to create alert: %w", err)
	}

	r.logger.Info("Alert created", "alert_id", a.ID, "severity", a.Severity, "source", a.Source)
	return nil
}

// GetByID retrieves an alert by ID, excluding soft-deleted rows.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	query := `
		SELECT * FROM alerts
		WHERE id = $1 AND deleted_at IS NULL`

	var a Alert
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get alert by ID", "alert_id", id, "error", err)
		return nil, fmt.Errorf("failed to get alert by ID: %w", err)
	}

	return &a, nil
}

// Update persists field and lifecycle changes to an existing alert. The write
// is guarded by the row version: expectedVersion must match the stored value
// or ErrVersionConflict is returned. On success the struct's Version and
// UpdatedAt reflect the stored row.
func (r *AlertRepository) Update(ctx context.Context, a *Alert, expectedVersion int64) error {
	query := `
		UPDATE alerts SET
			name = :name,
			description = :description,
			severity = :severity,
			status = :status,
			source = :source,
			acknowledged_at = :acknowledged_at,
			acknowledged_by = :acknowledged_by,
			resolved_at = :resolved_at,
			resolved_by = :resolved_by,
			resolution = :resolution,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version AND deleted_at IS NULL`

	a.UpdatedAt = time.Now().UTC()
	a.Version = expectedVersion

	result, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		r.logger.Error("Failed to update alert", "alert_id", a.ID, "error", err)
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1 AND deleted_at IS NULL)`, a.ID)
		if err != nil {
			return fmt.Errorf("failed to check alert existence: %w", err)
		}
		if exists {
			return ErrVersionConflict
		}
		return ErrNotFound
	}

	a.Version = expectedVersion + 1
	r.logger.Info("Alert updated", "alert_id", a.ID, "status", a.Status, "version", a.Version)
	return nil
}

// List retrieves alerts matching the filter, most recently triggered first.
func (r *AlertRepository) List(ctx context.Context, filter Filter) ([]*Alert, error) {
	whereClause, args, argIndex := buildWhereClause(filter)
	limitClause := buildLimitClause(filter, &argIndex, &args)

	query := fmt.Sprintf(
		`SELECT * FROM alerts %s ORDER BY triggered_at DESC %s`,
		whereClause, limitClause)

	alerts := []*Alert{}
	err := r.db.SelectContext(ctx, &alerts, query, args...)
	if err != nil {
		r.logger.Error("Failed to list alerts", "error", err)
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}

// ListStale retrieves active alerts that have not progressed since cutoff,
// oldest first. Used by the scheduler to escalate unattended alerts.
func (r *AlertRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*Alert, error) {
	query := `
		SELECT * FROM alerts
		WHERE status = $1
		AND triggered_at < $2
		AND deleted_at IS NULL
		ORDER BY triggered_at ASC
		LIMIT $3`

	alerts := []*Alert{}
	err := r.db.SelectContext(ctx, &alerts, query, "active", cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list stale alerts", "error", err)
		return nil, fmt.Errorf("failed to list stale alerts: %w", err)
	}

	return alerts, nil
}

// SoftDelete marks an alert as deleted without removing the row.
func (r *AlertRepository) SoftDelete(ctx context.Context, id, actor string) error {
	query := `
		UPDATE alerts SET
			deleted_at = NOW(),
			updated_at = NOW(),
			updated_by = $2
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, actor)
	if err != nil {
		r.logger.Error("Failed to delete alert", "alert_id", id, "error", err)
		return fmt.Errorf("failed to delete alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info("Alert deleted", "alert_id", id, "deleted_by", actor)
	return nil
}

// Stats retrieves alert counts by status and severity.
func (r *AlertRepository) Stats(ctx context.Context) (*AlertStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'active' THEN 1 END) as active,
			COUNT(CASE WHEN status = 'acknowledged' THEN 1 END) as acknowledged,
			COUNT(CASE WHEN status = 'resolved' THEN 1 END) as resolved,
			COUNT(CASE WHEN status = 'escalated' THEN 1 END) as escalated,
			COUNT(CASE WHEN severity = 'info' THEN 1 END) as info,
			COUNT(CASE WHEN severity = 'warning' THEN 1 END) as warning,
			COUNT(CASE WHEN severity = 'critical' THEN 1 END) as critical,
			COUNT(CASE WHEN severity = 'emergency' THEN 1 END) as emergency
		FROM alerts
		WHERE deleted_at IS NULL`

	var stats AlertStats
	err := r.db.GetContext(ctx, &stats, query)
	if err != nil {
		r.logger.Error("Failed to get alert stats", "error", err)
		return nil, fmt.Errorf("failed to get alert stats: %w", err)
	}

	return &stats, nil
}

// Cleanup purges soft-deleted alerts beyond the retention period.
func (r *AlertRepository) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	query := `
		DELETE FROM alerts
		WHERE deleted_at IS NOT NULL
		AND deleted_at < NOW() - make_interval(days => $1)`

	result, err := r.db.ExecContext(ctx, query, retentionDays)
	if err != nil {
		r.logger.Error("Failed to cleanup alerts", "error", err)
		return 0, fmt.Errorf("failed to cleanup alerts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.logger.Info("Alerts cleaned up", "deleted_count", rowsAffected)
	}
	return int(rowsAffected), nil
}

// Helper methods

func buildWhereClause(filter Filter) (string, []interface{}, int) {
	var conditions []string
	var args []interface{}
	argIndex := 0

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	if filter.Status != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
	}

	if filter.Severity != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIndex))
		args = append(args, *filter.Severity)
	}

	if filter.Search != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d OR source ILIKE $%d)",
			argIndex, argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args, argIndex
}

func buildLimitClause(filter Filter, argIndex *int, args *[]interface{}) string {
	if filter.Limit <= 0 {
		return ""
	}

	*argIndex++
	limitClause := fmt.Sprintf("LIMIT $%d", *argIndex)
	*args = append(*args, filter.Limit)

	if filter.Offset > 0 {
		*argIndex++
		limitClause += fmt.Sprintf(" OFFSET $%d", *argIndex)
		*args = append(*args, filter.Offset)
	}

	return limitClause
}
