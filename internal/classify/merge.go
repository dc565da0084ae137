package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deusflow/newsledger/internal/metrics"
	"github.com/deusflow/newsledger/internal/news"
	"github.com/deusflow/newsledger/internal/ratelimit"
)

// DefaultBatchSize is the number of titles per classifier request.
const DefaultBatchSize = 40

// LabelUpdate is the (sentiment, category) pair to write to one row. URL
// identifies the row again if the ledger shifted before the write; rows
// without a URL are matched by Row and Title.
type LabelUpdate struct {
	Row       int
	URL       string
	Title     string
	Sentiment string
	Category  string
}

// Eligible returns the rows with a title that still miss a sentiment or a
// category.
func Eligible(rows []news.LedgerRow) []news.LedgerRow {
	var out []news.LedgerRow
	for _, r := range rows {
		if strings.TrimSpace(r.Title) == "" || r.Labeled() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Batches splits rows into consecutive chunks of at most size rows.
func Batches(rows []news.LedgerRow, size int) [][]news.LedgerRow {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]news.LedgerRow
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// Merger runs eligible rows through a Classifier batch by batch.
type Merger struct {
	Classifier Classifier
	BatchSize  int
	// Limiter caps requests per run; nil means unlimited.
	Limiter *ratelimit.AIRateLimiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Merge classifies the eligible rows and returns one update per row that
// gained at least one field. Fields already set on a row are kept. A batch
// whose request or response fails contributes nothing; the rest still count.
func (m *Merger) Merge(ctx context.Context, rows []news.LedgerRow) []LabelUpdate {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}

	batches := Batches(Eligible(rows), m.BatchSize)
	var updates []LabelUpdate
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			log.Warn("classification interrupted", "batch", i+1, "error", err)
			m.Metrics.AddBatchesDeferred(len(batches) - i)
			break
		}
		if m.Limiter != nil {
			if err := m.Limiter.Use(m.Classifier.Name()); err != nil {
				log.Info("classifier budget spent, deferring remaining batches", "deferred", len(batches)-i, "reason", err)
				m.Metrics.AddBatchesDeferred(len(batches) - i)
				break
			}
		}

		m.Metrics.IncrementBatchesSubmitted()
		got, err := m.classifyBatch(ctx, batch)
		if err != nil {
			m.Metrics.IncrementBatchesFailed()
			log.Warn("classifier batch dropped", "batch", i+1, "rows", len(batch), "error", err)
			continue
		}
		updates = append(updates, got...)
	}
	return updates
}

func (m *Merger) classifyBatch(ctx context.Context, batch []news.LedgerRow) ([]LabelUpdate, error) {
	items := make([]Item, len(batch))
	byRow := make(map[int]news.LedgerRow, len(batch))
	for i, r := range batch {
		items[i] = Item{RowID: r.Number, Title: r.Title}
		byRow[r.Number] = r
	}

	raw, err := m.Classifier.Classify(ctx, items)
	if err != nil {
		return nil, err
	}
	labels, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	var out []LabelUpdate
	done := make(map[int]bool, len(labels))
	for _, l := range labels {
		row, ok := byRow[l.RowID]
		if !ok || done[l.RowID] {
			continue
		}
		done[l.RowID] = true
		if u, ok := Fill(row, l); ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Fill merges a label into a row's existing fields. It reports false when
// the label adds nothing.
func Fill(row news.LedgerRow, l Label) (LabelUpdate, bool) {
	u := LabelUpdate{
		Row:       row.Number,
		URL:       row.URL,
		Title:     row.Title,
		Sentiment: row.Sentiment,
		Category:  row.Category,
	}
	changed := false
	if u.Sentiment == "" && l.Sentiment != "" {
		u.Sentiment = l.Sentiment
		changed = true
	}
	if u.Category == "" && l.Category != "" {
		u.Category = l.Category
		changed = true
	}
	return u, changed
}
