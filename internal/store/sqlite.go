package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"stock-sentinel/internal/alert"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

var _ DataStore = (*SQLiteStore)(nil)
var _ alert.Ledger = (*SQLiteStore)(nil)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	loc    *time.Location
	limits map[models.EntityKind]int
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the time source used for timestamps and look-back windows.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithEntityLimit caps the number of active entities of a kind. Zero means unlimited.
func WithEntityLimit(kind models.EntityKind, max int) Option {
	return func(s *SQLiteStore) { s.limits[kind] = max }
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:     db,
		now:    time.Now,
		loc:    time.UTC,
		limits: make(map[models.EntityKind]int),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// schemaVersion is stored in PRAGMA user_version. Version 2 keys alerts by
// entity kind and compares entity ids without regard to case.
const schemaVersion = 2

const entitiesTable = `
	-- Stocks and politicians under monitoring
	CREATE TABLE IF NOT EXISTS tracked_entities (
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL COLLATE NOCASE,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		added_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (kind, entity_id)
	);`

const alertsTable = `
	-- One row per alert emitted for an entity on a calendar day
	CREATE TABLE IF NOT EXISTS alert_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL DEFAULT 'stock',
		entity_id TEXT NOT NULL COLLATE NOCASE,
		alert_date TEXT NOT NULL,
		alert_type TEXT NOT NULL DEFAULT 'daily',
		message_content TEXT,
		delivery_status TEXT NOT NULL DEFAULT 'attempted',
		created_at DATETIME NOT NULL,
		UNIQUE(kind, entity_id, alert_date, alert_type)
	);`

const activitiesTable = `
	-- Congressional trading disclosures
	CREATE TABLE IF NOT EXISTS politician_activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		politician TEXT NOT NULL,
		ticker TEXT NOT NULL,
		activity_date TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		amount_range TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		report_date TEXT,
		asset_description TEXT,
		analyzed INTEGER NOT NULL DEFAULT 0,
		analysis_notes TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE(politician, ticker, activity_date, activity_type, amount_range)
	);`

const indexes = `
	CREATE INDEX IF NOT EXISTS idx_alert_history_kind_entity_date ON alert_history(kind, entity_id, alert_date);
	CREATE INDEX IF NOT EXISTS idx_tracked_entities_status ON tracked_entities(kind, status);
	CREATE INDEX IF NOT EXISTS idx_activities_politician_date ON politician_activities(politician, activity_date);
`

// migrateV2 rebuilds the version 1 entity and alert tables. Entity ids that
// differ only by case collapse into one row, preferring an active one. Old
// alert rows get their kind from the id: tickers never contain a space.
const migrateV2 = `
	ALTER TABLE tracked_entities RENAME TO tracked_entities_v1;
	ALTER TABLE alert_history RENAME TO alert_history_v1;
` + entitiesTable + alertsTable + `
	INSERT OR IGNORE INTO tracked_entities (kind, entity_id, status, added_at, updated_at)
		SELECT kind, entity_id, status, added_at, updated_at FROM tracked_entities_v1
		ORDER BY status = 'ACTIVE' DESC, added_at ASC;
	INSERT OR IGNORE INTO alert_history (id, kind, entity_id, alert_date, alert_type, message_content, delivery_status, created_at)
		SELECT id,
			CASE WHEN instr(trim(entity_id), ' ') > 0 THEN 'politician' ELSE 'stock' END,
			entity_id, alert_date, alert_type, message_content, delivery_status, created_at
		FROM alert_history_v1
		ORDER BY id;
	DROP TABLE tracked_entities_v1;
	DROP TABLE alert_history_v1;
`

// initSchema creates all required tables and indexes, upgrading a database
// written by an older schema version in place.
func (s *SQLiteStore) initSchema() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}

	var existing int
	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'alert_history'
	`).Scan(&existing); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if version < schemaVersion && existing > 0 {
		if _, err := tx.Exec(migrateV2); err != nil {
			return fmt.Errorf("migrate to schema v%d: %w", schemaVersion, err)
		}
	}
	if _, err := tx.Exec(entitiesTable + alertsTable + activitiesTable + indexes); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStorageError("ping", err)
	}
	return nil
}

func (s *SQLiteStore) today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
