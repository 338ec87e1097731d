// Package congress fetches congressional trading disclosures from Quiver Quantitative.
package congress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/pkg/utils"
)

const (
	source         = "quiver"
	DefaultBaseURL = "https://api.quiverquant.com/beta"
	housePath      = "/live/housetrading"
	senatePath     = "/live/senatetrading"
)

// TradeSource returns disclosures filed since a point in time.
type TradeSource interface {
	RecentTrades(ctx context.Context, since time.Time) ([]models.CongressionalTrade, error)
}

// Client is a Quiver Quantitative API client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retry   utils.RetryConfig
	log     zerolog.Logger
}

var _ TradeSource = (*Client)(nil)

// NewClient creates a new Quiver client.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retry := utils.DefaultRetryConfig()
	retry.Retryable = isRetryable
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: retry,
		log:   log.With().Str("component", "congress").Logger(),
	}
}

// SetRetry overrides the retry policy.
func (c *Client) SetRetry(cfg utils.RetryConfig) {
	if cfg.Retryable == nil {
		cfg.Retryable = isRetryable
	}
	c.retry = cfg
}

// RecentTrades returns House and Senate trades dated on or after since,
// newest first. A failing chamber is logged and skipped unless both fail.
func (c *Client) RecentTrades(ctx context.Context, since time.Time) ([]models.CongressionalTrade, error) {
	if c.token == "" {
		return nil, errors.NewFetchError(source, "", errors.ErrNotConfigured)
	}

	var trades []models.CongressionalTrade
	var failures []error
	for _, chamber := range []models.Chamber{models.ChamberHouse, models.ChamberSenate} {
		got, err := c.chamberTrades(ctx, chamber, since)
		if err != nil {
			c.log.Warn().Err(err).Str("chamber", string(chamber)).Msg("Failed to fetch congressional trades")
			failures = append(failures, err)
			continue
		}
		trades = append(trades, got...)
	}
	if len(failures) == 2 {
		return nil, errors.NewFetchError(source, "", failures[0])
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TransactionDate.After(trades[j].TransactionDate)
	})
	return trades, nil
}

// TradesFor filters RecentTrades to a representative by case-insensitive substring match.
func TradesFor(trades []models.CongressionalTrade, representative string) []models.CongressionalTrade {
	needle := strings.ToLower(models.NormalizeID(models.KindPolitician, representative))
	var out []models.CongressionalTrade
	for _, t := range trades {
		if strings.Contains(strings.ToLower(t.Representative), needle) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Client) chamberTrades(ctx context.Context, chamber models.Chamber, since time.Time) ([]models.CongressionalTrade, error) {
	path := housePath
	if chamber == models.ChamberSenate {
		path = senatePath
	}

	start := time.Now()
	rows, err := utils.RetryWithResult(ctx, c.retry, func() ([]map[string]interface{}, error) {
		return c.get(ctx, path)
	})
	logging.LogAPICall(c.log, source, path, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	cutoff := since.Truncate(24 * time.Hour)
	var trades []models.CongressionalTrade
	for _, row := range rows {
		t, ok := parseRow(row, chamber)
		if !ok || t.TransactionDate.Before(cutoff) {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("quiver returned status %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *Client) get(ctx context.Context, path string) ([]map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "StockSentinel/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decoding %s: %w", path, err))
	}
	return rows, nil
}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseRow maps a House or Senate row; the two feeds name fields differently.
func parseRow(row map[string]interface{}, chamber models.Chamber) (models.CongressionalTrade, bool) {
	date, ok := parseDate(field(row, "TransactionDate", "Date"))
	if !ok {
		return models.CongressionalTrade{}, false
	}
	name := field(row, "Representative", "Senator", "Name")
	if name == "" {
		return models.CongressionalTrade{}, false
	}

	t := models.CongressionalTrade{
		Representative:   models.NormalizeID(models.KindPolitician, name),
		TransactionDate:  date,
		Ticker:           strings.ToUpper(field(row, "Ticker")),
		TransactionType:  orUnknown(field(row, "Transaction", "Type")),
		Amount:           orUnknown(field(row, "Range", "Amount")),
		Source:           chamber,
		AssetDescription: field(row, "Description", "AssetDescription"),
	}
	if rd, ok := parseDate(field(row, "ReportDate")); ok {
		t.ReportDate = &rd
	}
	return t, true
}

func field(row map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
