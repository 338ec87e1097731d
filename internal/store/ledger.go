package store

import (
	"context"
	"database/sql"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// DefaultHistoryDays is the look-back used when AlertHistory gets a non-positive window.
const DefaultHistoryDays = 7

// HasAlertBeenSent reports whether a non-failed alert exists for the entity on date.
func (s *SQLiteStore) HasAlertBeenSent(ctx context.Context, kind models.EntityKind, entityID string, date models.Date) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM alert_history
			WHERE kind = ? AND entity_id = ? AND alert_date = ? AND delivery_status != ?
		)
	`, string(kind), entityID, string(date), string(models.DeliveryFailed)).Scan(&exists)
	if err != nil {
		return false, errors.NewStorageError("has_alert_been_sent", err)
	}
	return exists, nil
}

// RecordAlert appends an alert row and returns its id. A row that already
// exists for (kind, entity, date, type) yields ErrAlreadyAlerted. An empty
// kind records a stock alert.
func (s *SQLiteStore) RecordAlert(ctx context.Context, rec models.AlertRecord) (int64, error) {
	if rec.EntityID == "" {
		return 0, errors.ErrInvalidEntity
	}
	if rec.Kind == "" {
		rec.Kind = models.KindStock
	}
	if rec.AlertDate == "" {
		rec.AlertDate = s.today()
	}
	if rec.AlertType == "" {
		rec.AlertType = models.AlertDaily
	}
	if rec.DeliveryStatus == "" {
		rec.DeliveryStatus = models.DeliveryAttempted
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	var message sql.NullString
	if rec.MessageContent != "" {
		message = sql.NullString{String: rec.MessageContent, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history (kind, entity_id, alert_date, alert_type, message_content, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Kind), rec.EntityID, string(rec.AlertDate), string(rec.AlertType), message, string(rec.DeliveryStatus), rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errors.Wrapf(errors.ErrAlreadyAlerted, "%s %s on %s", rec.Kind, rec.EntityID, rec.AlertDate)
		}
		return 0, errors.NewStorageError("record_alert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewStorageError("record_alert", err)
	}
	return id, nil
}

// AlertHistory returns the entity's alerts from the last daysBack days, newest first.
func (s *SQLiteStore) AlertHistory(ctx context.Context, kind models.EntityKind, entityID string, daysBack int) ([]models.AlertRecord, error) {
	if daysBack <= 0 {
		daysBack = DefaultHistoryDays
	}
	since := s.today().AddDays(-daysBack)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, entity_id, alert_date, alert_type, message_content, delivery_status, created_at
		FROM alert_history
		WHERE kind = ? AND entity_id = ? AND alert_date >= ?
		ORDER BY alert_date DESC, created_at DESC, id DESC
	`, string(kind), entityID, string(since))
	if err != nil {
		return nil, errors.NewStorageError("alert_history", err)
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var kind, date, alertType, status string
		var message sql.NullString
		if err := rows.Scan(&rec.ID, &kind, &rec.EntityID, &date, &alertType, &message, &status, &rec.CreatedAt); err != nil {
			return nil, errors.NewStorageError("alert_history", err)
		}
		rec.Kind = models.EntityKind(kind)
		rec.AlertDate = models.Date(date)
		rec.AlertType = models.AlertType(alertType)
		rec.DeliveryStatus = models.DeliveryStatus(status)
		rec.MessageContent = message.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("alert_history", err)
	}
	return records, nil
}

// DeleteAlertsBefore purges alert rows dated strictly before cutoff.
func (s *SQLiteStore) DeleteAlertsBefore(ctx context.Context, cutoff models.Date) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM alert_history WHERE alert_date < ?
	`, string(cutoff))
	if err != nil {
		return 0, errors.NewStorageError("delete_alerts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewStorageError("delete_alerts", err)
	}
	return n, nil
}
