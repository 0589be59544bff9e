package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/backend"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/preset"
	"cashflow/internal/report"
)

var (
	flagBackend     string
	flagDBPath      string
	flagSeedFile    string
	flagPresetsFile string
	flagJSON        bool
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "cashflowctl",
	Short:         "Cash-flow reports and forecasts",
	Long:          "Compute cash-flow series, summaries and sankey flows over a ledger, with optional forecasts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		cli.LoadEnvFile()
		if !flagVerbose && os.Getenv("LOG_LEVEL") == "" {
			_ = os.Setenv("LOG_LEVEL", "warn")
		}
	},
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Data backend: memory or sqlite (default from DATA_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (default from SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagSeedFile, "seed", "", "YAML fixture loaded into the backend before running")
	rootCmd.PersistentFlags().StringVar(&flagPresetsFile, "presets", "", "Presets file (default from PRESETS_FILE)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at LOG_LEVEL (default info) instead of warn")
}

// app is what every command needs once configuration is resolved.
type app struct {
	logger  *log.Logger
	cfg     *config.Config
	backend *backend.Result
	reports *report.Service
}

func (a *app) Close() {
	a.backend.Close()
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if flagBackend != "" {
		cfg.DataBackend = flagBackend
	}
	if flagDBPath != "" {
		cfg.SQLiteDBPath = flagDBPath
	}
	if flagSeedFile != "" {
		cfg.SeedFile = flagSeedFile
	}
	if flagPresetsFile != "" {
		cfg.PresetsFile = flagPresetsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp resolves configuration and opens the backend.
func openApp(ctx context.Context) (*app, error) {
	logger := cli.SetupLogger(os.Stderr)
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	return &app{
		logger:  logger,
		cfg:     cfg,
		backend: be,
		reports: cli.NewReportService(be.Store, logger, cfg),
	}, nil
}

func (a *app) preset(name string) (preset.Preset, error) {
	if a.cfg.PresetsFile == "" {
		return preset.Preset{}, fmt.Errorf("--preset %s needs --presets or PRESETS_FILE", name)
	}
	set, err := preset.Load(a.cfg.PresetsFile)
	if err != nil {
		return preset.Preset{}, err
	}
	p, ok := set.Find(name)
	if !ok {
		return preset.Preset{}, fmt.Errorf("unknown preset %q in %s", name, a.cfg.PresetsFile)
	}
	return p, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 2*time.Minute)
}
