// Package app wires the pipeline: select today's rows from the feeds, append
// the new ones to the day's ledger, repair dedup keys and fold in labels.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/deusflow/newsledger/internal/classify"
	"github.com/deusflow/newsledger/internal/config"
	"github.com/deusflow/newsledger/internal/gemini"
	"github.com/deusflow/newsledger/internal/metrics"
	"github.com/deusflow/newsledger/internal/news"
	"github.com/deusflow/newsledger/internal/openai"
	"github.com/deusflow/newsledger/internal/ratelimit"
	"github.com/deusflow/newsledger/internal/storage"
	"github.com/deusflow/newsledger/internal/titlekey"
	"github.com/deusflow/newsledger/internal/window"
)

// Deps are the collaborators of a run. Classifier may be nil, in which case
// labeling is skipped.
type Deps struct {
	Store      storage.Store
	Feeds      []FeedSource
	Classifier classify.Classifier
	Limiter    *ratelimit.AIRateLimiter
	Keys       titlekey.Strategy
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Report summarizes one run.
type Report struct {
	DayKey        string
	Window        window.Window
	FeedsSkipped  []string
	Candidates    int
	Appended      int
	KeysRewritten int
	LabelsWritten int
}

// Run executes the pipeline once. Per-row, per-feed and classifier failures
// are logged and counted; failures to open or write the workbooks abort the
// run.
func Run(ctx context.Context, cfg config.Config, deps Deps) (Report, error) {
	start := time.Now()
	deps = withDefaults(deps)
	log := deps.Logger
	m := deps.Metrics

	if deps.Keys == nil {
		keys, err := titlekey.Select(cfg.TitleNormalizer)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		deps.Keys = keys
	}

	loc := cfg.Location()
	now := deps.Now().In(loc)
	report := Report{
		DayKey: window.DayKey(now, loc),
		Window: window.Resolve(now, loc),
	}
	log.Info("run started", "day", report.DayKey, "window", report.Window.String(), "normalizer", deps.Keys.Name())

	if _, err := deps.Store.SheetTitles(ctx, cfg.InputSpreadsheetID); err != nil {
		return fail(m, report, fmt.Errorf("open input workbook: %w", err))
	}
	titles, err := deps.Store.SheetTitles(ctx, cfg.OutputSpreadsheetID)
	if err != nil {
		return fail(m, report, fmt.Errorf("open output workbook: %w", err))
	}
	if !slices.Contains(titles, report.DayKey) {
		if err := deps.Store.CreateSheet(ctx, cfg.OutputSpreadsheetID, report.DayKey, cfg.Header); err != nil {
			return fail(m, report, err)
		}
		log.Info("created ledger sheet", "sheet", report.DayKey)
	}

	ledger, err := readLedger(ctx, deps.Store, cfg.OutputSpreadsheetID, report.DayKey)
	if err != nil {
		return fail(m, report, err)
	}

	// Selection
	selector := &news.Selector{Window: report.Window, Location: loc, Keys: deps.Keys, Metrics: m}
	var candidates []news.Candidate
	for _, feed := range deps.Feeds {
		rows, err := feed.Rows(ctx)
		if errors.Is(err, ErrFeedUnavailable) {
			m.IncrementFeedsSkipped()
			report.FeedsSkipped = append(report.FeedsSkipped, feed.Name())
			log.Warn("feed skipped", "feed", feed.Name(), "error", err)
			continue
		}
		if err != nil {
			return fail(m, report, fmt.Errorf("read feed %s: %w", feed.Name(), err))
		}
		m.IncrementFeedsRead()
		picked := selector.Select(feed.Name(), rows)
		log.Debug("feed scanned", "feed", feed.Name(), "rows", len(rows), "candidates", len(picked))
		candidates = append(candidates, picked...)
	}
	report.Candidates = len(candidates)

	// Append
	fresh := news.SelectNew(candidates, news.ExistingURLs(ledger))
	m.AddDuplicatesFiltered(len(candidates) - len(fresh))
	if len(fresh) > 0 {
		values := make([][]any, len(fresh))
		for i, c := range fresh {
			values[i] = c.Values()
		}
		if err := deps.Store.AppendRows(ctx, cfg.OutputSpreadsheetID, report.DayKey, values); err != nil {
			return fail(m, report, err)
		}
	}
	report.Appended = len(fresh)
	m.AddRowsAppended(len(fresh))
	log.Info("ledger appended", "candidates", len(candidates), "appended", len(fresh))

	// Key repair
	ledger, err = readLedger(ctx, deps.Store, cfg.OutputSpreadsheetID, report.DayKey)
	if err != nil {
		return fail(m, report, err)
	}
	if keyUpdates := news.RecomputeKeys(ledger, deps.Keys); len(keyUpdates) > 0 {
		cells := make([]storage.CellUpdate, len(keyUpdates))
		for i, u := range keyUpdates {
			cells[i] = storage.CellUpdate{
				Range:  storage.A1(report.DayKey, news.ColDedupKey, u.Row),
				Values: []any{u.Key},
			}
		}
		if err := deps.Store.UpdateCells(ctx, cfg.OutputSpreadsheetID, cells); err != nil {
			return fail(m, report, err)
		}
		report.KeysRewritten = len(keyUpdates)
		m.AddKeysRewritten(len(keyUpdates))
		log.Info("dedup keys rewritten", "rows", len(keyUpdates))
	}

	// Labels
	if deps.Classifier == nil {
		log.Info("no classifier configured, skipping labels")
	} else {
		merger := &classify.Merger{
			Classifier: deps.Classifier,
			BatchSize:  cfg.Classifier.BatchSize,
			Limiter:    deps.Limiter,
			Metrics:    m,
			Logger:     log.With("component", "classify", "provider", deps.Classifier.Name()),
		}
		updates := merger.Merge(ctx, ledger)
		written, err := writeLabels(ctx, deps.Store, cfg.OutputSpreadsheetID, report.DayKey, updates)
		if err != nil {
			return fail(m, report, err)
		}
		report.LabelsWritten = written
		m.AddLabelsWritten(written)
		log.Info("labels written", "rows", written)
	}

	m.RecordProcessingTime(time.Since(start))
	m.SetLastRun()
	log.Info("run complete", m.LogArgs()...)
	return report, nil
}

// writeLabels re-reads the ledger and applies updates to the rows that now
// hold their URL, so rows inserted since the classification pass are never
// mislabeled. An update without a URL applies only if its row still carries
// the same title. Rows labeled meanwhile keep their values.
func writeLabels(ctx context.Context, store storage.Store, spreadsheetID, sheet string, updates []classify.LabelUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	ledger, err := readLedger(ctx, store, spreadsheetID, sheet)
	if err != nil {
		return 0, err
	}
	byURL := make(map[string]news.LedgerRow, len(ledger))
	byRow := make(map[int]news.LedgerRow, len(ledger))
	for _, r := range ledger {
		byRow[r.Number] = r
		if _, ok := byURL[r.URL]; !ok && r.URL != "" {
			byURL[r.URL] = r
		}
	}

	var cells []storage.CellUpdate
	for _, u := range updates {
		current, ok := byURL[u.URL]
		if u.URL == "" {
			current, ok = byRow[u.Row]
			ok = ok && current.URL == "" && current.Title == u.Title
		}
		if !ok || current.Labeled() {
			continue
		}
		merged, changed := classify.Fill(current, classify.Label{Sentiment: u.Sentiment, Category: u.Category})
		if !changed {
			continue
		}
		cells = append(cells, storage.CellUpdate{
			Range:  storage.A1Span(sheet, news.ColSentiment, news.ColCategory, merged.Row),
			Values: []any{merged.Sentiment, merged.Category},
		})
	}
	if len(cells) == 0 {
		return 0, nil
	}
	if err := store.UpdateCells(ctx, spreadsheetID, cells); err != nil {
		return 0, err
	}
	return len(cells), nil
}

// Stats is the run's metrics snapshot. With a limiter configured, its usage
// is nested under "classifier_budget".
func Stats(deps Deps) map[string]interface{} {
	var stats map[string]interface{}
	if deps.Metrics != nil {
		stats = deps.Metrics.GetStats()
	} else {
		stats = make(map[string]interface{})
	}
	if deps.Limiter != nil {
		stats["classifier_budget"] = deps.Limiter.GetStats()
	}
	return stats
}

func readLedger(ctx context.Context, store storage.Store, spreadsheetID, sheet string) ([]news.LedgerRow, error) {
	values, err := store.ReadValues(ctx, spreadsheetID, sheet)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", sheet, err)
	}
	return news.ParseLedger(values), nil
}

func fail(m *metrics.Metrics, report Report, err error) (Report, error) {
	m.SetError(err.Error())
	return report, err
}

func withDefaults(d Deps) Deps {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// OpenStore builds the configured table backend. Credentials the Sheets
// client rejects are a configuration error.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreFile:
		fs := storage.NewFileStore(cfg.StoreFile)
		if err := fs.Load(); err != nil {
			return nil, err
		}
		return fs, nil
	default:
		store, err := storage.NewSheetsStore(ctx, cfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		return store, nil
	}
}

// NewClassifier builds the configured classifier, or returns nil when the
// provider has no API key.
func NewClassifier(ctx context.Context, cfg config.Config) (classify.Classifier, error) {
	cc := cfg.Classifier
	if !cc.Enabled() {
		return nil, nil
	}
	switch cc.Provider {
	case config.ProviderOpenAI:
		return openai.NewClassifier(cc.APIKey(), cc.Model(), cc.Categories, cc.Instructions), nil
	default:
		c, err := gemini.NewClassifier(ctx, cc.APIKey(), cc.Model(), cc.Categories, cc.Instructions)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// NewLimiter caps classifier requests per run.
func NewLimiter(cfg config.Config) *ratelimit.AIRateLimiter {
	return ratelimit.NewAIRateLimiter(map[string]int{
		cfg.Classifier.Provider: cfg.Classifier.MaxRequests,
	}, cfg.Classifier.MaxRequests)
}
