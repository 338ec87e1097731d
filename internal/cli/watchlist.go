package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/security"
)

// addWatchlistCommands adds the stocks and politicians command groups.
func addWatchlistCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newEntityCmd(app, models.KindStock))
	rootCmd.AddCommand(newEntityCmd(app, models.KindPolitician))
}

type entityCmdText struct {
	use, short, arg, addExample, removeExample string
}

func textFor(kind models.EntityKind) entityCmdText {
	if kind == models.KindPolitician {
		return entityCmdText{
			use:           "politicians",
			short:         "Manage tracked politicians",
			arg:           "<full name>",
			addExample:    `  sentinel politicians add Nancy Pelosi`,
			removeExample: `  sentinel politicians remove "Nancy Pelosi"`,
		}
	}
	return entityCmdText{
		use:           "stocks",
		short:         "Manage tracked stocks",
		arg:           "<symbol>",
		addExample:    "  sentinel stocks add AAPL\n  sentinel stocks add brk.b",
		removeExample: "  sentinel stocks remove AAPL",
	}
}

func newEntityCmd(app *App, kind models.EntityKind) *cobra.Command {
	text := textFor(kind)
	cmd := &cobra.Command{
		Use:   text.use,
		Short: text.short,
		Long:  "Add, remove, and list tracked " + text.use + ".",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add " + text.arg,
		Short:   "Start tracking",
		Example: text.addExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			id, err := security.ValidateEntity(kind, strings.Join(args, " "))
			if err != nil {
				output.Error("%v", err)
				return err
			}

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			entity, err := st.AddEntity(ctx, kind, id)
			if err != nil {
				switch {
				case errors.Is(err, errors.ErrAlreadyTracked):
					output.Warning("%s is already tracked", id)
					return nil
				case errors.Is(err, errors.ErrTrackingLimit):
					output.Error("Tracking limit reached: %v", err)
				default:
					output.Error("Failed to add %s: %v", id, err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(entity)
			}
			output.Success("✓ Now tracking %s", entity.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove " + text.arg,
		Aliases: []string{"rm"},
		Short:   "Stop tracking",
		Example: text.removeExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			id := models.NormalizeID(kind, strings.Join(args, " "))
			if err := st.RemoveEntity(ctx, kind, id); err != nil {
				if errors.Is(err, errors.ErrEntityNotFound) {
					output.Warning("%s is not tracked", id)
				} else {
					output.Error("Failed to remove %s: %v", id, err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": id})
			}
			output.Success("✓ Stopped tracking %s", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked " + text.use,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			entities, err := st.ListActive(ctx, kind)
			if err != nil {
				output.Error("Failed to list %s: %v", text.use, err)
				return err
			}
			if entities == nil {
				entities = []models.TrackedEntity{}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"kind":     kind,
					"count":    len(entities),
					"entities": entities,
				})
			}

			output.Bold("Tracked %s (%d)", text.use, len(entities))
			if len(entities) == 0 {
				output.Dim("  Use 'sentinel %s add %s' to start tracking", text.use, text.arg)
				return nil
			}
			output.Println()

			table := NewTable(output, "ID", "SINCE")
			for _, e := range entities {
				table.AddRow(e.ID, FormatDateTime(e.AddedAt, app.Config.Location()))
			}
			table.Render()
			return nil
		},
	})

	return cmd
}
