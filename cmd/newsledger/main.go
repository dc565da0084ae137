package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/newsledger/internal/app"
	"github.com/deusflow/newsledger/internal/config"
	"github.com/deusflow/newsledger/internal/logger"
	"github.com/deusflow/newsledger/internal/metrics"
	"github.com/deusflow/newsledger/internal/rss"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

var (
	configPath string
	nowFlag    string
	noClassify bool
	reportFile string
)

var rootCmd = &cobra.Command{
	Use:   "newsledger",
	Short: "Collect today's news rows into the daily ledger sheet",
	Long: `Reads the source feeds, appends the rows posted inside the current
acquisition window (15:00 the previous day to 14:59:59 today) to the day's
ledger sheet, repairs dedup keys and labels unlabeled rows.

Examples:
  newsledger                                 # normal run
  newsledger --config newsledger.yaml        # with a config file
  newsledger --now 2025-08-20T16:00:00+09:00 # back-fill a past day
  newsledger --no-classify                   # skip sentiment/category labels`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $NEWSLEDGER_CONFIG)")
	rootCmd.Flags().StringVar(&nowFlag, "now", "", "run as if the current time were this RFC3339 instant")
	rootCmd.Flags().BoolVar(&noClassify, "no-classify", false, "skip the classification pass")
	rootCmd.Flags().StringVar(&reportFile, "report-file", "", "write run metrics as JSON to this file")
}

func main() {
	// Missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("run failed", "error", err)
		if errors.Is(err, config.ErrInvalid) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFailure)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Logger is not configured yet.
		logger.Init("info", "text")
		return err
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log := logger.Init(level, cfg.LogFormat).With("run_id", uuid.NewString())

	now := time.Now
	if nowFlag != "" {
		fixed, err := time.Parse(time.RFC3339, nowFlag)
		if err != nil {
			return fmt.Errorf("%w: --now: %v", config.ErrInvalid, err)
		}
		now = func() time.Time { return fixed }
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	deps := app.Deps{
		Store:   store,
		Feeds:   app.BuildFeeds(cfg, store, rss.NewFetcher(nil)),
		Metrics: metrics.New(),
		Logger:  log.With("component", "pipeline"),
		Now:     now,
	}

	if noClassify {
		log.Info("classification disabled by flag")
	} else {
		clf, err := app.NewClassifier(ctx, cfg)
		if err != nil {
			log.Warn("classifier unavailable, continuing without labels", "provider", cfg.Classifier.Provider, "error", err)
		} else if clf != nil {
			if c, ok := clf.(interface{ Close() }); ok {
				defer c.Close()
			}
			deps.Classifier = clf
			deps.Limiter = app.NewLimiter(cfg)
		}
	}

	report, runErr := app.Run(ctx, cfg, deps)
	if reportFile != "" {
		if err := writeReport(reportFile, app.Stats(deps)); err != nil {
			log.Warn("failed to write report", "file", reportFile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	log.Info("done",
		"day", report.DayKey,
		"appended", report.Appended,
		"keys_rewritten", report.KeysRewritten,
		"labels_written", report.LabelsWritten,
		"feeds_skipped", report.FeedsSkipped,
	)
	return nil
}

func writeReport(path string, stats map[string]interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
