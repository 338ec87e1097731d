package models

import "time"

// DateLayout is the persisted calendar-date format of alert rows.
const DateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time parses the date as midnight UTC.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

// AddDays returns the date n days after d. Invalid dates are returned as is.
func (d Date) AddDays(n int) Date {
	t, err := d.Time()
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// AlertType tags the reason an alert was emitted.
type AlertType string

const (
	AlertDaily             AlertType = "daily"
	AlertPriceMovement     AlertType = "price_movement"
	AlertPoliticianTrading AlertType = "politician_trading"
)

// AlertSeverity grades an alert by magnitude.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// SeverityForChange grades a signed change ratio.
func SeverityForChange(ratio float64) AlertSeverity {
	if ratio < 0 {
		ratio = -ratio
	}
	switch {
	case ratio >= 0.10:
		return SeverityCritical
	case ratio >= 0.05:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// DeliveryStatus is the outcome of the notification attached to an alert row.
type DeliveryStatus string

const (
	DeliveryAttempted DeliveryStatus = "attempted"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryFailed    DeliveryStatus = "failed"
)

// AlertRecord is one row of the alert ledger. Rows are keyed by kind and
// entity so a ticker and a politician sharing a name never collide.
type AlertRecord struct {
	ID             int64          `json:"id"`
	Kind           EntityKind     `json:"kind"`
	EntityID       string         `json:"entity_id"`
	AlertDate      Date           `json:"alert_date"`
	AlertType      AlertType      `json:"alert_type"`
	MessageContent string         `json:"message_content,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AlertMetadata is the structured payload describing why an alert fired.
// Only the fields relevant to the alert type are populated.
type AlertMetadata struct {
	Severity      AlertSeverity `json:"severity"`
	CurrentPrice  float64       `json:"current_price,omitempty"`
	PreviousClose float64       `json:"previous_close,omitempty"`
	ChangeRatio   float64       `json:"change_ratio,omitempty"`
	Unanalyzed    int           `json:"unanalyzed,omitempty"`
}
