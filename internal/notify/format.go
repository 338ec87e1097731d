package notify

import (
	"fmt"
	"strings"
	"time"

	"stock-sentinel/internal/models"
	"stock-sentinel/pkg/utils"
)

func severityIcon(s models.AlertSeverity) string {
	switch s {
	case models.SeverityCritical:
		return "🚨"
	case models.SeverityWarning:
		return "⚠️"
	default:
		return "📈"
	}
}

// StockAlert builds the notification for a significant stock move.
func StockAlert(q models.Quote, ratio float64, summary string) Notification {
	severity := models.SeverityForChange(ratio)
	direction := "up"
	if ratio < 0 {
		direction = "down"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "%s is %s %s today: %s (previous close %s)",
		q.Symbol, direction, utils.FormatRatio(ratio), utils.FormatUSD(q.Current), utils.FormatUSD(q.PreviousClose))
	if summary != "" {
		msg.WriteString("\n\n")
		msg.WriteString(summary)
	}

	return Notification{
		Type:     NotificationStock,
		Entity:   q.Symbol,
		Title:    fmt.Sprintf("%s %s", q.Symbol, utils.FormatRatio(ratio)),
		Message:  msg.String(),
		Severity: severity,
		Metadata: &models.AlertMetadata{
			Severity:      severity,
			CurrentPrice:  q.Current,
			PreviousClose: q.PreviousClose,
			ChangeRatio:   ratio,
		},
		Timestamp: time.Now(),
	}
}

// PoliticianAlert builds the notification for new congressional disclosures.
func PoliticianAlert(name string, unanalyzed int, summary string) Notification {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s disclosed %d new trade", name, unanalyzed)
	if unanalyzed != 1 {
		msg.WriteString("s")
	}
	if summary != "" {
		msg.WriteString("\n\n")
		msg.WriteString(summary)
	}

	return Notification{
		Type:     NotificationPolitician,
		Entity:   name,
		Title:    fmt.Sprintf("Congressional trading: %s", name),
		Message:  msg.String(),
		Severity: models.SeverityInfo,
		Metadata: &models.AlertMetadata{
			Severity:   models.SeverityInfo,
			Unanalyzed: unanalyzed,
		},
		Timestamp: time.Now(),
	}
}
