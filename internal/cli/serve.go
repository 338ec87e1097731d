package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stock-sentinel/internal/models"
	"stock-sentinel/internal/scheduler"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/server"
	"stock-sentinel/internal/telegram"
)

// addTrackingCommands adds serve and check.
func addTrackingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, REST API and Telegram bot",
		Long: `Run Stock Sentinel as a long-lived service.

Stocks are checked every tracking.interval_minutes, politicians once a day at
tracking.politician_hour, and old alert history is pruned nightly. The REST
API and the Telegram command bot start when configured.`,
		Example: `  sentinel serve
  sentinel serve --no-initial-check
  sentinel serve --config ./deploy --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noInitial, _ := cmd.Flags().GetBool("no-initial-check")
			return app.serve(cmd, !noInitial)
		},
	}
	cmd.Flags().Bool("no-initial-check", false, "skip the stock check on startup")
	return cmd
}

func (app *App) serve(cmd *cobra.Command, initialCheck bool) error {
	cfg := app.Config
	log := app.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.buildRuntime(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	loc := cfg.Location()
	sched := scheduler.New(log, loc)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{scheduler.IntervalSchedule(cfg.Tracking.IntervalMinutes), scheduler.NewTrackingJob(models.KindStock, rt.tracker)},
		{scheduler.DailySchedule(cfg.Tracking.PoliticianHour), scheduler.NewTrackingJob(models.KindPolitician, rt.tracker)},
		{scheduler.RetentionSchedule, scheduler.NewRetentionJob(rt.store, cfg.Tracking.RetentionDays, loc, log)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.job.Name(), err)
		}
	}
	sched.Start()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	var srv *server.Server
	if cfg.API.Enabled {
		srv = server.New(server.Config{
			Host:      cfg.API.Host,
			Port:      cfg.API.Port,
			AuthToken: cfg.Credentials.API.AuthToken,
			Log:       log,
			Store:     rt.store,
			Tracker:   rt.tracker,
			Health:    rt.health,
			Schedule:  sched,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if rt.botAPI != nil && cfg.Notifications.Telegram.Commands && cfg.TelegramChatID() != 0 {
		deps := telegram.Deps{
			Entities: rt.store,
			History:  rt.store,
			Tracker:  rt.tracker,
		}
		if rt.assistant != nil {
			deps.Assistant = rt.assistant
		}
		bot := telegram.NewBot(rt.botAPI, cfg.TelegramChatID(), deps, cfg.Notifications.Telegram.PollTimeout, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				errCh <- fmt.Errorf("telegram bot: %w", err)
			}
		}()
	}

	log.Info().
		Int("interval_minutes", cfg.Tracking.IntervalMinutes).
		Int("politician_hour", cfg.Tracking.PoliticianHour).
		Str("timezone", loc.String()).
		Strs("channels", rt.notifier.Channels()).
		Msg("Stock Sentinel started")

	if initialCheck {
		go func() {
			if err := sched.RunNow(scheduler.NewTrackingJob(models.KindStock, rt.tracker)); err != nil {
				log.Error().Str("error", security.MaskError(err)).Msg("Initial stock check failed")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Component failed, shutting down")
		stop()
	}

	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown")
		}
		cancel()
	}
	wg.Wait()

	log.Info().Msg("Stock Sentinel stopped")
	return runErr
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check [stocks|politicians]",
		Short: "Run one tracking cycle now",
		Long: `Run a single tracking cycle and print what it did.

Alerts are sent and recorded exactly as in serve, so an entity that already
alerted today stays quiet.`,
		Example: `  sentinel check
  sentinel check politicians
  sentinel check --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			kind := models.KindStock
			if len(args) == 1 {
				k, err := security.ParseKind(args[0])
				if err != nil {
					output.Error("%v", err)
					return err
				}
				kind = k
			}

			rt, err := app.buildRuntime(cmd.OutOrStdout())
			if err != nil {
				output.Error("Failed to start: %v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCycle(ctx, output, rt, kind)
		},
	}
}
