// Package cli provides the command-line interface for Stock Sentinel.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-sentinel/internal/config"
	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-03-15"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     *store.SQLiteStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Stock Sentinel - daily stock and congressional trade alerts",
		Long: `Stock Sentinel watches a list of stocks and politicians and sends a
Telegram alert at most once per day per entity when a stock moves past the
configured threshold or a politician discloses new trades.

Use 'sentinel serve' to run the scheduler, REST API and Telegram bot.
Use 'sentinel check' to run a single tracking cycle now.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return app.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-sentinel)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addTrackingCommands(rootCmd, app)
	addWatchlistCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

func (app *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg
	app.ConfigDir = dir

	// Interactive commands keep stdout for their own output and log to the
	// file, or to stderr when file logging is off.
	logCfg := cfg.Logging
	if cmd.Name() == "serve" {
		app.Logger = logging.New(logCfg, os.Stdout)
	} else {
		logCfg.Console = false
		app.Logger = logging.New(logCfg, cmd.ErrOrStderr())
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// openStore opens the SQLite store on first use.
func (app *App) openStore() (*store.SQLiteStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	path := app.Config.Database.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(path,
		store.WithLocation(app.Config.Location()),
		store.WithEntityLimit(models.KindStock, app.Config.Tracking.MaxTrackedStocks),
	)
	if err != nil {
		return nil, err
	}
	app.Store = st
	app.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	return st, nil
}

func (app *App) close() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		app.Store = nil
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Sentinel v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(maskedConfig(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"path": app.ConfigDir,
					"file": config.ConfigPath(app.ConfigDir),
				})
			} else {
				output.Println(app.ConfigDir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

// maskedConfig returns a copy of cfg that is safe to print.
func maskedConfig(cfg *config.Config) config.Config {
	c := *cfg
	c.Notifications.Telegram.BotToken = security.MaskCredential(c.Notifications.Telegram.BotToken)
	c.Credentials.OpenAI.APIKey = security.MaskCredential(c.Credentials.OpenAI.APIKey)
	c.Credentials.Alpaca.KeyID = security.MaskCredential(c.Credentials.Alpaca.KeyID)
	c.Credentials.Alpaca.SecretKey = security.MaskCredential(c.Credentials.Alpaca.SecretKey)
	c.Credentials.Quiver.APIToken = security.MaskCredential(c.Credentials.Quiver.APIToken)
	c.Credentials.API.AuthToken = security.MaskCredential(c.Credentials.API.AuthToken)
	return c
}

func showConfig(output *Output, cfg *config.Config) {
	masked := maskedConfig(cfg)

	output.Bold("Tracking")
	output.Printf("  Interval:         %d min\n", cfg.Tracking.IntervalMinutes)
	output.Printf("  Threshold:        %s\n", FormatThreshold(cfg.Tracking.PriceChangeThreshold))
	output.Printf("  Max Stocks:       %d\n", cfg.Tracking.MaxTrackedStocks)
	output.Printf("  Politician Hour:  %02d:00\n", cfg.Tracking.PoliticianHour)
	output.Printf("  Record Policy:    %s\n", cfg.Tracking.RecordPolicy)
	output.Printf("  Timezone:         %s\n", cfg.Tracking.Timezone)
	output.Printf("  Retention:        %d days\n", cfg.Tracking.RetentionDays)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:         %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("API")
	output.Printf("  Enabled:          %v\n", cfg.API.Enabled)
	output.Printf("  Address:          %s:%d\n", cfg.API.Host, cfg.API.Port)
	output.Printf("  Auth Token:       %s\n", orNone(masked.Credentials.API.AuthToken))
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Bot Token:        %s\n", orNone(masked.Notifications.Telegram.BotToken))
	output.Printf("  Chat ID:          %s\n", orNone(cfg.Notifications.Telegram.ChatID))
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Println()

	output.Bold("Providers")
	output.Printf("  Market:           %s (%s feed)\n", cfg.Market.Provider, cfg.Market.Feed)
	output.Printf("  Alpaca Key:       %s\n", orNone(masked.Credentials.Alpaca.KeyID))
	output.Printf("  Quiver Token:     %s\n", orNone(masked.Credentials.Quiver.APIToken))
	output.Printf("  OpenAI Key:       %s\n", orNone(masked.Credentials.OpenAI.APIKey))
	output.Printf("  Model:            %s (research: %s)\n", cfg.Agents.Model, cfg.Agents.ResearchModel)
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
