package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/pkg/utils"
)

// StockBrief describes a significant stock move to research.
type StockBrief struct {
	Symbol        string
	CurrentPrice  float64
	PreviousClose float64
	ChangeRatio   float64
}

// PoliticianBrief describes new congressional disclosures to research.
type PoliticianBrief struct {
	Name       string
	Activities []models.PoliticianActivity
}

// Researcher runs the two-step research then summarise pipeline.
type Researcher struct {
	research LLMClient
	summary  LLMClient
	log      zerolog.Logger
}

// NewResearcher creates a researcher. The summariser may be a cheaper model.
func NewResearcher(research, summary LLMClient, log zerolog.Logger) *Researcher {
	if summary == nil {
		summary = research
	}
	return &Researcher{
		research: research,
		summary:  summary,
		log:      log.With().Str("component", "researcher").Logger(),
	}
}

// StockReport researches a price move and returns an alert-sized summary.
func (r *Researcher) StockReport(ctx context.Context, b StockBrief) (string, error) {
	severity := models.SeverityForChange(b.ChangeRatio)
	prompt := fmt.Sprintf(stockResearchTemplate,
		b.Symbol,
		utils.FormatUSD(b.CurrentPrice),
		utils.FormatUSD(b.PreviousClose),
		utils.FormatRatio(b.ChangeRatio),
		severity,
	)

	return r.run(ctx, "stock_report", b.Symbol, stockResearchPrompt, prompt, func(research string) string {
		return fmt.Sprintf(stockSummaryTemplate, b.Symbol, utils.FormatRatio(b.ChangeRatio), research)
	})
}

// PoliticianReport researches new disclosures and returns an alert-sized summary.
func (r *Researcher) PoliticianReport(ctx context.Context, b PoliticianBrief) (string, error) {
	prompt := FormatActivities(b.Name, b.Activities)

	return r.run(ctx, "politician_report", b.Name, politicianResearchPrompt, prompt, func(research string) string {
		return fmt.Sprintf(politicianSummaryTemplate, b.Name, len(b.Activities), research)
	})
}

func (r *Researcher) run(ctx context.Context, operation, entity, system, prompt string, summaryInput func(string) string) (string, error) {
	start := time.Now()

	research, err := r.research.CompleteWithSystem(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("research for %s: %w", entity, err)
	}

	summary, err := r.summary.CompleteWithSystem(ctx, summarizerPrompt, summaryInput(research))
	if err != nil {
		return "", fmt.Errorf("summary for %s: %w", entity, err)
	}

	opLog := logging.WithOperation(r.log, operation)
	opLog.Debug().
		Str("entity", entity).
		Dur("duration", time.Since(start)).
		Msg("Research pipeline completed")

	return strings.TrimSpace(summary), nil
}

// FormatActivities renders disclosures as a plain-text list.
func FormatActivities(name string, activities []models.PoliticianActivity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent disclosed trades by %s:\n", name)
	if len(activities) == 0 {
		b.WriteString("- none\n")
		return b.String()
	}
	for _, a := range activities {
		fmt.Fprintf(&b, "- %s %s %s (%s, %s)",
			a.ActivityDate.Format(models.DateLayout), a.ActivityType, a.Ticker, a.AmountRange, a.Source)
		if a.AssetDescription != "" {
			fmt.Fprintf(&b, " %s", a.AssetDescription)
		}
		b.WriteString("\n")
	}
	return b.String()
}
