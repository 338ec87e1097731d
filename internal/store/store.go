// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"stock-sentinel/internal/alert"
	"stock-sentinel/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	alert.Ledger
	EntityStore
	ActivityStore

	// Retention
	DeleteAlertsBefore(ctx context.Context, cutoff models.Date) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// EntityStore manages the set of tracked stocks and politicians.
type EntityStore interface {
	// AddEntity starts tracking an entity, reactivating it if it was removed.
	AddEntity(ctx context.Context, kind models.EntityKind, id string) (models.TrackedEntity, error)
	// RemoveEntity soft-deletes an active entity.
	RemoveEntity(ctx context.Context, kind models.EntityKind, id string) error
	GetEntity(ctx context.Context, kind models.EntityKind, id string) (models.TrackedEntity, error)
	ListActive(ctx context.Context, kind models.EntityKind) ([]models.TrackedEntity, error)
	CountActive(ctx context.Context, kind models.EntityKind) (int, error)
}

// ActivityStore persists congressional trading disclosures.
type ActivityStore interface {
	// SaveTrades upserts disclosures, ignoring ones already stored.
	SaveTrades(ctx context.Context, trades []models.CongressionalTrade) (int, error)
	UnanalyzedActivities(ctx context.Context, politician string, since models.Date) ([]models.PoliticianActivity, error)
	MarkAnalyzed(ctx context.Context, politician string, since models.Date, notes string) (int64, error)
	RecentActivities(ctx context.Context, politician string, limit int) ([]models.PoliticianActivity, error)
}
