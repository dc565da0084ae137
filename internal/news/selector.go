package news

import (
	"strings"
	"time"

	"github.com/deusflow/newsledger/internal/metrics"
	"github.com/deusflow/newsledger/internal/timestamp"
	"github.com/deusflow/newsledger/internal/titlekey"
	"github.com/deusflow/newsledger/internal/window"
)

// Selector picks the feed rows that belong to the current acquisition window.
type Selector struct {
	Window   window.Window
	Location *time.Location
	Keys     titlekey.Strategy
	Metrics  *metrics.Metrics
}

// Select returns the candidates of one feed in row order. Rows with an empty
// title, url or timestamp, an unparseable timestamp, or a timestamp outside
// the window are skipped and counted.
func (s *Selector) Select(feed string, rows []RawRow) []Candidate {
	var out []Candidate
	for _, row := range rows {
		s.Metrics.IncrementRowsScanned()

		title := strings.TrimSpace(row.Title)
		link := strings.TrimSpace(row.URL)
		if title == "" || link == "" || blank(row.PostedAt) {
			s.Metrics.IncrementRowsSkipped(metrics.SkipMissingField)
			continue
		}

		posted, ok := timestamp.ParseAt(row.PostedAt, s.Location, s.Window.End)
		if !ok {
			s.Metrics.IncrementRowsSkipped(metrics.SkipUnparseable)
			continue
		}
		if !s.Window.Contains(posted) {
			s.Metrics.IncrementRowsSkipped(metrics.SkipOutsideWindow)
			continue
		}

		out = append(out, Candidate{
			Source:      feed,
			Title:       title,
			URL:         link,
			PostedAt:    timestamp.Format(posted),
			Attribution: strings.TrimSpace(row.Attribution),
			DedupKey:    s.Keys.Key(title),
		})
		s.Metrics.IncrementCandidatesSelected()
	}
	return out
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}
