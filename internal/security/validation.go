// Package security validates user-supplied identifiers and masks credentials
// before they reach logs or chat replies.
package security

import (
	"regexp"
	"strings"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// Validation patterns
var (
	// Ticker: letter first, then letters, digits, dot or dash (BRK.B, BF-B)
	tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

	// Politician: letters with spaces and common name punctuation
	namePattern = regexp.MustCompile(`^[\p{L}][\p{L} .'\-]{1,79}$`)
)

// ValidateTicker checks a stock symbol and returns its normalized form.
func ValidateTicker(raw string) (string, error) {
	symbol := models.NormalizeID(models.KindStock, raw)
	if symbol == "" {
		return "", errors.NewValidationError("symbol", raw, "symbol cannot be empty")
	}
	if !tickerPattern.MatchString(symbol) {
		return "", errors.NewValidationError("symbol", raw, "invalid symbol format")
	}
	return symbol, nil
}

// ValidatePoliticianName checks a politician's name and returns its normalized form.
func ValidatePoliticianName(raw string) (string, error) {
	name := models.NormalizeID(models.KindPolitician, raw)
	if name == "" {
		return "", errors.NewValidationError("name", raw, "name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return "", errors.NewValidationError("name", raw, "invalid name format")
	}
	return name, nil
}

// ValidateEntity dispatches to the validator for kind.
func ValidateEntity(kind models.EntityKind, raw string) (string, error) {
	switch kind {
	case models.KindStock:
		return ValidateTicker(raw)
	case models.KindPolitician:
		return ValidatePoliticianName(raw)
	default:
		return "", errors.NewValidationError("kind", kind, "unknown entity kind")
	}
}

// ParseKind maps user-facing words like "stocks" or "politician" to a kind.
func ParseKind(raw string) (models.EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stock", "stocks", "ticker", "tickers":
		return models.KindStock, nil
	case "politician", "politicians", "congress":
		return models.KindPolitician, nil
	default:
		return "", errors.NewValidationError("kind", raw, "expected stocks or politicians")
	}
}
