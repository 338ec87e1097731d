// Package models provides domain models for the monitoring application.
package models

import (
	"strings"
	"time"
)

// EntityKind identifies what a tracked entity refers to.
type EntityKind string

const (
	KindStock      EntityKind = "stock"
	KindPolitician EntityKind = "politician"
)

// EntityStatus is the soft-delete state of a tracked entity.
type EntityStatus string

const (
	StatusActive   EntityStatus = "ACTIVE"
	StatusInactive EntityStatus = "INACTIVE"
)

// TrackedEntity is a stock ticker or politician under monitoring.
type TrackedEntity struct {
	ID      string       `json:"id"`
	Kind    EntityKind   `json:"kind"`
	Status  EntityStatus `json:"status"`
	AddedAt time.Time    `json:"added_at"`
}

// NormalizeID returns the stable key for an entity of the given kind.
// Tickers are upper-cased; politician names are trimmed with inner
// whitespace collapsed.
func NormalizeID(kind EntityKind, raw string) string {
	if kind == KindStock {
		return strings.ToUpper(strings.TrimSpace(raw))
	}
	return strings.Join(strings.Fields(raw), " ")
}

// Quote is a point-in-time price reading for a stock.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Current       float64   `json:"current"`
	PreviousClose float64   `json:"previous_close"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Change returns the absolute price change from the previous close.
func (q Quote) Change() float64 {
	return q.Current - q.PreviousClose
}
