package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// SaveTrades stores disclosures and returns how many were new.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []models.CongressionalTrade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStorageError("save_trades", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO politician_activities
			(politician, ticker, activity_date, activity_type, amount_range, source, report_date, asset_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errors.NewStorageError("save_trades", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	inserted := 0
	for _, t := range trades {
		name := models.NormalizeID(models.KindPolitician, t.Representative)
		if name == "" || t.TransactionDate.IsZero() {
			continue
		}

		var reportDate sql.NullString
		if t.ReportDate != nil {
			reportDate = sql.NullString{String: string(models.DateOf(*t.ReportDate)), Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			name,
			strings.ToUpper(strings.TrimSpace(t.Ticker)),
			string(models.DateOf(t.TransactionDate)),
			t.TransactionType,
			t.Amount,
			string(t.Source),
			reportDate,
			t.AssetDescription,
			now,
		)
		if err != nil {
			return 0, errors.NewStorageError("save_trades", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStorageError("save_trades", err)
	}
	return inserted, nil
}

// UnanalyzedActivities returns a politician's unanalysed disclosures dated on or after since.
func (s *SQLiteStore) UnanalyzedActivities(ctx context.Context, politician string, since models.Date) ([]models.PoliticianActivity, error) {
	return s.queryActivities(ctx, "unanalyzed_activities", `
		WHERE politician = ? COLLATE NOCASE AND activity_date >= ? AND analyzed = 0
		ORDER BY activity_date DESC, id DESC
	`, models.NormalizeID(models.KindPolitician, politician), string(since))
}

// RecentActivities returns a politician's latest disclosures.
func (s *SQLiteStore) RecentActivities(ctx context.Context, politician string, limit int) ([]models.PoliticianActivity, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryActivities(ctx, "recent_activities", `
		WHERE politician = ? COLLATE NOCASE
		ORDER BY activity_date DESC, id DESC
		LIMIT ?
	`, models.NormalizeID(models.KindPolitician, politician), limit)
}

// MarkAnalyzed flags a politician's unanalysed disclosures since a date as analysed.
func (s *SQLiteStore) MarkAnalyzed(ctx context.Context, politician string, since models.Date, notes string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE politician_activities SET analyzed = 1, analysis_notes = ?
		WHERE politician = ? COLLATE NOCASE AND activity_date >= ? AND analyzed = 0
	`, notes, models.NormalizeID(models.KindPolitician, politician), string(since))
	if err != nil {
		return 0, errors.NewStorageError("mark_analyzed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewStorageError("mark_analyzed", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryActivities(ctx context.Context, op, clause string, args ...interface{}) ([]models.PoliticianActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, politician, ticker, activity_date, activity_type, amount_range, source,
			report_date, asset_description, analyzed, analysis_notes, created_at
		FROM politician_activities
	`+clause, args...)
	if err != nil {
		return nil, errors.NewStorageError(op, err)
	}
	defer rows.Close()

	var activities []models.PoliticianActivity
	for rows.Next() {
		var a models.PoliticianActivity
		var activityDate, source string
		var reportDate, description, notes sql.NullString
		if err := rows.Scan(&a.ID, &a.Politician, &a.Ticker, &activityDate, &a.ActivityType,
			&a.AmountRange, &source, &reportDate, &description, &a.Analyzed, &notes, &a.CreatedAt); err != nil {
			return nil, errors.NewStorageError(op, err)
		}

		a.ActivityDate, _ = time.Parse(models.DateLayout, activityDate)
		a.Source = models.Chamber(source)
		if reportDate.Valid {
			if t, err := time.Parse(models.DateLayout, reportDate.String); err == nil {
				a.ReportDate = &t
			}
		}
		a.AssetDescription = description.String
		a.AnalysisNotes = notes.String
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(op, err)
	}
	return activities, nil
}
