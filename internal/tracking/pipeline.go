package tracking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/agents"
	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/movement"
	"stock-sentinel/internal/notify"
)

// Reporter produces alert summaries. *agents.Researcher implements it.
type Reporter interface {
	StockReport(ctx context.Context, b agents.StockBrief) (string, error)
	PoliticianReport(ctx context.Context, b agents.PoliticianBrief) (string, error)
}

// AnalysisMarker flags disclosures as handled once they have been alerted on.
type AnalysisMarker interface {
	MarkAnalyzed(ctx context.Context, politician string, since models.Date, notes string) (int64, error)
}

// ResearchPipeline summarises a reading with the LLM researcher and sends it
// through the notifier. Research failures degrade to a plain alert.
type ResearchPipeline struct {
	reporter Reporter
	notifier notify.Notifier
	marker   AnalysisMarker
	log      zerolog.Logger
}

var _ Pipeline = (*ResearchPipeline)(nil)

// NewResearchPipeline creates a pipeline. reporter and marker may be nil.
func NewResearchPipeline(reporter Reporter, notifier notify.Notifier, marker AnalysisMarker, log zerolog.Logger) *ResearchPipeline {
	return &ResearchPipeline{
		reporter: reporter,
		notifier: notifier,
		marker:   marker,
		log:      log,
	}
}

// Dispatch builds the alert for the entity and delivers it. It logs through
// the logger carried by ctx when the cycle supplies one.
func (p *ResearchPipeline) Dispatch(ctx context.Context, entity models.TrackedEntity, reading Reading) (string, error) {
	fallback := logging.WithEntity(p.log, string(entity.Kind), entity.ID)
	log := logging.FromContext(ctx, fallback).With().Str("component", "pipeline").Logger()
	switch entity.Kind {
	case models.KindStock:
		return p.dispatchStock(ctx, log, entity, reading)
	case models.KindPolitician:
		return p.dispatchPolitician(ctx, log, entity, reading)
	default:
		return "", fmt.Errorf("unsupported entity kind %q", entity.Kind)
	}
}

func (p *ResearchPipeline) dispatchStock(ctx context.Context, log zerolog.Logger, entity models.TrackedEntity, reading Reading) (string, error) {
	if reading.Quote == nil {
		return "", fmt.Errorf("no quote for %s", entity.ID)
	}
	q := *reading.Quote
	var ratio float64
	if r, ok := reading.Verdict.(movement.Result); ok {
		ratio = r.ChangeRatio
	} else if q.PreviousClose != 0 {
		ratio = q.Current/q.PreviousClose - 1
	}

	var summary string
	if p.reporter != nil {
		s, err := p.reporter.StockReport(ctx, agents.StockBrief{
			Symbol:        entity.ID,
			CurrentPrice:  q.Current,
			PreviousClose: q.PreviousClose,
			ChangeRatio:   ratio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Research failed, sending plain alert")
		} else {
			summary = s
		}
	}

	n := notify.StockAlert(q, ratio, summary)
	return n.Message, p.notifier.Send(ctx, n)
}

func (p *ResearchPipeline) dispatchPolitician(ctx context.Context, log zerolog.Logger, entity models.TrackedEntity, reading Reading) (string, error) {
	var summary string
	if p.reporter != nil {
		s, err := p.reporter.PoliticianReport(ctx, agents.PoliticianBrief{
			Name:       entity.ID,
			Activities: reading.Activities,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Research failed, sending plain alert")
		} else {
			summary = s
		}
	}

	n := notify.PoliticianAlert(entity.ID, len(reading.Activities), summary)
	sendErr := p.notifier.Send(ctx, n)

	if p.marker != nil {
		notes := summary
		if notes == "" {
			notes = n.Message
		}
		if _, err := p.marker.MarkAnalyzed(ctx, entity.ID, reading.Since, notes); err != nil {
			log.Error().Err(err).Msg("Failed to mark disclosures analyzed")
		}
	}

	return n.Message, sendErr
}
