package store

import (
	"context"
	"database/sql"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// AddEntity starts tracking an entity. Ids match without regard to case. An
// inactive entity is reactivated under its stored spelling; an active one
// yields ErrAlreadyTracked.
func (s *SQLiteStore) AddEntity(ctx context.Context, kind models.EntityKind, id string) (models.TrackedEntity, error) {
	id = models.NormalizeID(kind, id)
	if id == "" {
		return models.TrackedEntity{}, errors.ErrInvalidEntity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TrackedEntity{}, errors.NewStorageError("add_entity", err)
	}
	defer tx.Rollback()

	var stored, status string
	err = tx.QueryRowContext(ctx, `
		SELECT entity_id, status FROM tracked_entities WHERE kind = ? AND entity_id = ?
	`, string(kind), id).Scan(&stored, &status)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return models.TrackedEntity{}, errors.NewStorageError("add_entity", err)
	}
	if exists {
		id = stored
		if models.EntityStatus(status) == models.StatusActive {
			return models.TrackedEntity{}, errors.Wrapf(errors.ErrAlreadyTracked, "%s %s", kind, id)
		}
	}

	if max := s.limits[kind]; max > 0 {
		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tracked_entities WHERE kind = ? AND status = ?
		`, string(kind), string(models.StatusActive)).Scan(&count); err != nil {
			return models.TrackedEntity{}, errors.NewStorageError("add_entity", err)
		}
		if count >= max {
			return models.TrackedEntity{}, errors.Wrapf(errors.ErrTrackingLimit, "maximum %d %s entities", max, kind)
		}
	}

	now := s.now().UTC()
	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE tracked_entities SET status = ?, added_at = ?, updated_at = ?
			WHERE kind = ? AND entity_id = ?
		`, string(models.StatusActive), now, now, string(kind), id)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tracked_entities (kind, entity_id, status, added_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, string(kind), id, string(models.StatusActive), now, now)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return models.TrackedEntity{}, errors.Wrapf(errors.ErrAlreadyTracked, "%s %s", kind, id)
		}
		return models.TrackedEntity{}, errors.NewStorageError("add_entity", err)
	}

	if err := tx.Commit(); err != nil {
		return models.TrackedEntity{}, errors.NewStorageError("add_entity", err)
	}

	return models.TrackedEntity{ID: id, Kind: kind, Status: models.StatusActive, AddedAt: now}, nil
}

// RemoveEntity marks an active entity inactive. History is kept.
func (s *SQLiteStore) RemoveEntity(ctx context.Context, kind models.EntityKind, id string) error {
	id = models.NormalizeID(kind, id)

	res, err := s.db.ExecContext(ctx, `
		UPDATE tracked_entities SET status = ?, updated_at = ?
		WHERE kind = ? AND entity_id = ? AND status = ?
	`, string(models.StatusInactive), s.now().UTC(), string(kind), id, string(models.StatusActive))
	if err != nil {
		return errors.NewStorageError("remove_entity", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError("remove_entity", err)
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrEntityNotFound, "%s %s", kind, id)
	}
	return nil
}

// GetEntity returns an entity regardless of status.
func (s *SQLiteStore) GetEntity(ctx context.Context, kind models.EntityKind, id string) (models.TrackedEntity, error) {
	id = models.NormalizeID(kind, id)

	var e models.TrackedEntity
	var k, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, entity_id, status, added_at FROM tracked_entities
		WHERE kind = ? AND entity_id = ?
	`, string(kind), id).Scan(&k, &e.ID, &status, &e.AddedAt)
	if err == sql.ErrNoRows {
		return models.TrackedEntity{}, errors.Wrapf(errors.ErrEntityNotFound, "%s %s", kind, id)
	}
	if err != nil {
		return models.TrackedEntity{}, errors.NewStorageError("get_entity", err)
	}
	e.Kind = models.EntityKind(k)
	e.Status = models.EntityStatus(status)
	return e, nil
}

// ListActive returns active entities of a kind, oldest first.
func (s *SQLiteStore) ListActive(ctx context.Context, kind models.EntityKind) ([]models.TrackedEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, added_at FROM tracked_entities
		WHERE kind = ? AND status = ?
		ORDER BY added_at ASC, entity_id ASC
	`, string(kind), string(models.StatusActive))
	if err != nil {
		return nil, errors.NewStorageError("list_active", err)
	}
	defer rows.Close()

	var entities []models.TrackedEntity
	for rows.Next() {
		e := models.TrackedEntity{Kind: kind, Status: models.StatusActive}
		if err := rows.Scan(&e.ID, &e.AddedAt); err != nil {
			return nil, errors.NewStorageError("list_active", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("list_active", err)
	}
	return entities, nil
}

// CountActive returns the number of active entities of a kind.
func (s *SQLiteStore) CountActive(ctx context.Context, kind models.EntityKind) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tracked_entities WHERE kind = ? AND status = ?
	`, string(kind), string(models.StatusActive)).Scan(&count)
	if err != nil {
		return 0, errors.NewStorageError("count_active", err)
	}
	return count, nil
}
