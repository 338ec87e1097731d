package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-sentinel/internal/models"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
)

// addHistoryCommands adds alert history and retention commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newCleanupCmd(app))
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <symbol|full name>",
		Short: "Show recent alerts for an entity",
		Long: `Show the alert ledger for a stock or politician, newest first.

Names with a space are treated as politicians unless --kind says otherwise.`,
		Example: `  sentinel history AAPL
  sentinel history AAPL --days 30
  sentinel history Nancy Pelosi --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			days, _ := cmd.Flags().GetInt("days")
			if days < 1 || days > 365 {
				err := fmt.Errorf("--days must be between 1 and 365")
				output.Error("%v", err)
				return err
			}

			raw := strings.Join(args, " ")
			kind := models.KindStock
			if k, _ := cmd.Flags().GetString("kind"); k != "" {
				parsed, err := security.ParseKind(k)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				kind = parsed
			} else if len(args) > 1 || strings.Contains(raw, " ") {
				kind = models.KindPolitician
			}
			entity := models.NormalizeID(kind, raw)

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			records, err := st.AlertHistory(ctx, kind, entity, days)
			if err != nil {
				output.Error("Failed to read alert history: %v", err)
				return err
			}
			if records == nil {
				records = []models.AlertRecord{}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"kind":   kind,
					"entity": entity,
					"days":   days,
					"alerts": records,
				})
			}

			output.Bold("Alerts for %s (last %d days)", entity, days)
			if len(records) == 0 {
				output.Dim("  No alerts")
				return nil
			}
			output.Println()

			table := NewTable(output, "DATE", "TYPE", "STATUS", "MESSAGE")
			for _, r := range records {
				table.AddRow(
					string(r.AlertDate),
					string(r.AlertType),
					output.DeliveryStatus(r.DeliveryStatus),
					TruncateString(FirstLine(r.MessageContent), 60),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("days", store.DefaultHistoryDays, "look-back window in days (1-365)")
	cmd.Flags().String("kind", "", "entity kind: stocks or politicians")
	return cmd
}

func newCleanupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old alert history",
		Long: `Delete alert ledger rows older than the retention window.

Defaults to tracking.retention_days. Only rows from before the window are
removed, so today's once-per-day guarantee is unaffected.`,
		Example: `  sentinel cleanup
  sentinel cleanup --days 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			days, _ := cmd.Flags().GetInt("days")
			if !cmd.Flags().Changed("days") {
				days = app.Config.Tracking.RetentionDays
			}
			if days < 1 {
				err := fmt.Errorf("retention must be at least 1 day")
				output.Error("%v", err)
				return err
			}

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			today := models.DateOf(time.Now().In(app.Config.Location()))
			cutoff := today.AddDays(-days)
			deleted, err := st.DeleteAlertsBefore(ctx, cutoff)
			if err != nil {
				output.Error("Cleanup failed: %v", err)
				return err
			}
			app.Logger.Info().Int64("deleted", deleted).Str("cutoff", string(cutoff)).Msg("Alert history pruned")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"cutoff":  cutoff,
					"deleted": deleted,
				})
			}
			output.Success("✓ Deleted %d alert(s) dated before %s", deleted, cutoff)
			return nil
		},
	}

	cmd.Flags().Int("days", 90, "keep alerts from the last N days")
	return cmd
}
