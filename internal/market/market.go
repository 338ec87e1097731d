// Package market fetches stock quotes from the market-data provider.
package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/pkg/utils"
)

const source = "alpaca"

// QuoteProvider returns the latest price and previous close for a symbol.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// SnapshotClient is the subset of the Alpaca market-data client in use.
type SnapshotClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// AlpacaProvider implements QuoteProvider on Alpaca snapshots.
type AlpacaProvider struct {
	client SnapshotClient
	feed   marketdata.Feed
	retry  utils.RetryConfig
	log    zerolog.Logger
}

var _ QuoteProvider = (*AlpacaProvider)(nil)

// Options configures the Alpaca provider.
type Options struct {
	KeyID     string
	SecretKey string
	BaseURL   string
	Feed      string
	Retry     *utils.RetryConfig
}

// NewAlpacaProvider creates a provider backed by the Alpaca market-data API.
// Empty credentials fall back to the APCA_API_* environment variables.
func NewAlpacaProvider(opts Options, log zerolog.Logger) *AlpacaProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.KeyID,
		APISecret: opts.SecretKey,
		BaseURL:   opts.BaseURL,
	})
	return NewAlpacaProviderWithClient(client, opts, log)
}

// NewAlpacaProviderWithClient creates a provider over an existing client.
func NewAlpacaProviderWithClient(client SnapshotClient, opts Options, log zerolog.Logger) *AlpacaProvider {
	retry := utils.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	feed := marketdata.IEX
	if strings.EqualFold(opts.Feed, "sip") {
		feed = marketdata.SIP
	}
	return &AlpacaProvider{
		client: client,
		feed:   feed,
		retry:  retry,
		log:    log.With().Str("component", "market").Logger(),
	}
}

// GetQuote returns the latest trade price and the previous session close.
func (p *AlpacaProvider) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = models.NormalizeID(models.KindStock, symbol)
	start := time.Now()

	snap, err := utils.RetryWithResult(ctx, p.retry, func() (*marketdata.Snapshot, error) {
		return p.snapshot(ctx, symbol)
	})
	logging.LogAPICall(p.log, source, "snapshot/"+symbol, time.Since(start), err)
	if err != nil {
		return models.Quote{}, errors.NewFetchError(source, symbol, err)
	}

	return quoteFromSnapshot(symbol, snap)
}

// snapshot calls the blocking client and honours ctx cancellation.
func (p *AlpacaProvider) snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	type result struct {
		snap *marketdata.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := p.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: p.feed})
		done <- result{snap, err}
	}()

	select {
	case <-ctx.Done():
		return nil, utils.Permanent(errors.Wrap(errors.ErrTimeout, ctx.Err().Error()))
	case r := <-done:
		if r.err == nil && r.snap == nil {
			return nil, utils.Permanent(fmt.Errorf("no snapshot for %s", symbol))
		}
		return r.snap, r.err
	}
}

func quoteFromSnapshot(symbol string, snap *marketdata.Snapshot) (models.Quote, error) {
	q := models.Quote{Symbol: symbol}

	switch {
	case snap.LatestTrade != nil:
		q.Current = snap.LatestTrade.Price
		q.Timestamp = snap.LatestTrade.Timestamp
	case snap.DailyBar != nil:
		q.Current = snap.DailyBar.Close
		q.Timestamp = snap.DailyBar.Timestamp
	default:
		return models.Quote{}, errors.NewFetchError(source, symbol, fmt.Errorf("snapshot has no current price"))
	}

	if snap.PrevDailyBar == nil {
		return models.Quote{}, errors.NewFetchError(source, symbol, fmt.Errorf("snapshot has no previous close"))
	}
	q.PreviousClose = snap.PrevDailyBar.Close

	if snap.DailyBar != nil {
		q.Volume = int64(snap.DailyBar.Volume)
	}
	return q, nil
}
