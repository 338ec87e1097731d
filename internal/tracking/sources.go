package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/congress"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/market"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/movement"
)

// StockSource reads quotes and evaluates the day's price move.
type StockSource struct {
	quotes    market.QuoteProvider
	threshold float64
}

var _ ReadingSource = (*StockSource)(nil)

// NewStockSource creates a stock source. A non-positive threshold uses
// movement.DefaultThreshold.
func NewStockSource(quotes market.QuoteProvider, threshold float64) *StockSource {
	if threshold <= 0 {
		threshold = movement.DefaultThreshold
	}
	return &StockSource{quotes: quotes, threshold: threshold}
}

// Read fetches the latest quote for the entity and compares it with the
// previous close.
func (s *StockSource) Read(ctx context.Context, entity models.TrackedEntity, today models.Date) (Reading, error) {
	q, err := s.quotes.GetQuote(ctx, entity.ID)
	if err != nil {
		return Reading{}, err
	}

	verdict, err := movement.Evaluate(q.PreviousClose, q.Current, s.threshold)
	if err != nil {
		return Reading{}, fmt.Errorf("evaluating %s: %w", entity.ID, err)
	}

	return Reading{Verdict: verdict, Quote: &q, Since: today}, nil
}

// ActivitySource is the storage used by PoliticianSource.
type ActivitySource interface {
	SaveTrades(ctx context.Context, trades []models.CongressionalTrade) (int, error)
	UnanalyzedActivities(ctx context.Context, politician string, since models.Date) ([]models.PoliticianActivity, error)
}

// PoliticianSource reports unanalyzed disclosures for tracked politicians.
type PoliticianSource struct {
	trades       congress.TradeSource
	store        ActivitySource
	entities     EntityLister
	lookbackDays int
	windowDays   int
	now          func() time.Time
	log          zerolog.Logger
}

var (
	_ ReadingSource = (*PoliticianSource)(nil)
	_ Preparer      = (*PoliticianSource)(nil)
)

// PoliticianSourceConfig configures a PoliticianSource.
type PoliticianSourceConfig struct {
	// LookbackDays is how far back disclosures are fetched on each refresh.
	LookbackDays int
	// WindowDays is how far back unanalyzed disclosures count towards an alert.
	WindowDays int
	Now        func() time.Time
}

// NewPoliticianSource creates a politician source. trades may be nil, in
// which case only stored disclosures are considered.
func NewPoliticianSource(trades congress.TradeSource, store ActivitySource, entities EntityLister, cfg PoliticianSourceConfig, log zerolog.Logger) *PoliticianSource {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PoliticianSource{
		trades:       trades,
		store:        store,
		entities:     entities,
		lookbackDays: cfg.LookbackDays,
		windowDays:   cfg.WindowDays,
		now:          cfg.Now,
		log:          log.With().Str("component", "politician_source").Logger(),
	}
}

// Prepare fetches recent disclosures and stores the ones filed by tracked
// politicians.
func (s *PoliticianSource) Prepare(ctx context.Context) error {
	if s.trades == nil {
		return nil
	}

	politicians, err := s.entities.ListActive(ctx, models.KindPolitician)
	if err != nil {
		return err
	}
	if len(politicians) == 0 {
		return nil
	}

	since := s.now().AddDate(0, 0, -s.lookbackDays)
	trades, err := s.trades.RecentTrades(ctx, since)
	if err != nil {
		if errors.Is(err, errors.ErrNotConfigured) {
			s.log.Debug().Msg("Congressional trade source not configured")
			return nil
		}
		return err
	}

	var relevant []models.CongressionalTrade
	for _, p := range politicians {
		for _, t := range congress.TradesFor(trades, p.ID) {
			t.Representative = p.ID
			relevant = append(relevant, t)
		}
	}

	saved, err := s.store.SaveTrades(ctx, relevant)
	if err != nil {
		return err
	}
	s.log.Info().
		Int("fetched", len(trades)).
		Int("relevant", len(relevant)).
		Int("saved", saved).
		Msg("Congressional disclosures refreshed")
	return nil
}

// Read counts the politician's unanalyzed disclosures inside the window.
func (s *PoliticianSource) Read(ctx context.Context, entity models.TrackedEntity, today models.Date) (Reading, error) {
	since := today.AddDays(-s.windowDays)
	activities, err := s.store.UnanalyzedActivities(ctx, entity.ID, since)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Verdict:    movement.EvaluatePresence(len(activities)),
		Activities: activities,
		Since:      since,
	}, nil
}
