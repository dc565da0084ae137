// Package news holds the ledger row model, the row selector that turns feed
// rows into candidates, and the reconciler that decides what to append.
package news

import (
	"fmt"
	"strconv"
	"strings"
)

// Ledger columns. Downstream readers address cells by position, so the
// order is fixed.
const (
	ColSource       = "A"
	ColTitle        = "B"
	ColURL          = "C"
	ColPostedAt     = "D"
	ColAttribution  = "E"
	ColSentiment    = "F"
	ColCategory     = "G"
	ColDedupKey     = "H"
	ColPaidCategory = "I"

	LedgerColumns = 9
)

// DefaultHeader is the first row of every newly created ledger sheet.
var DefaultHeader = []string{
	"source", "title", "url", "posted-at", "attribution",
	"sentiment", "category", "dedup-key", "paid-category",
}

// HeaderValues converts a header to a sheet row.
func HeaderValues(header []string) []any {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}

// DefaultHeaderValues is DefaultHeader as a sheet row.
func DefaultHeaderValues() []any {
	return HeaderValues(DefaultHeader)
}

// RawRow is one data row of a source feed: title, url, posted at, attribution.
type RawRow struct {
	Title       string
	URL         string
	PostedAt    any
	Attribution string
}

// Candidate is a feed row that passed selection, ready to be appended.
type Candidate struct {
	Source      string
	Title       string
	URL         string
	PostedAt    string
	Attribution string
	DedupKey    string
}

// Values lays the candidate out as a ledger row. Sentiment, category and the
// paid category start empty.
func (c Candidate) Values() []any {
	return []any{c.Source, c.Title, c.URL, c.PostedAt, c.Attribution, "", "", c.DedupKey, ""}
}

// LedgerRow is a persisted row. Number is the 1-based sheet row; the header
// is row 1.
type LedgerRow struct {
	Number       int
	Source       string
	Title        string
	URL          string
	PostedAt     string
	Attribution  string
	Sentiment    string
	Category     string
	DedupKey     string
	PaidCategory string
}

// Labeled reports whether both label fields are populated.
func (r LedgerRow) Labeled() bool {
	return r.Sentiment != "" && r.Category != ""
}

// RowsFromValues converts a feed's cell grid to raw rows, dropping the header.
// Missing trailing cells read as empty.
func RowsFromValues(values [][]any) []RawRow {
	if len(values) <= 1 {
		return nil
	}
	rows := make([]RawRow, 0, len(values)-1)
	for _, cells := range values[1:] {
		rows = append(rows, RawRow{
			Title:       CellString(cells, 0),
			URL:         CellString(cells, 1),
			PostedAt:    cell(cells, 2),
			Attribution: CellString(cells, 3),
		})
	}
	return rows
}

// ParseLedger converts a ledger sheet's cell grid to rows, dropping the
// header and numbering rows as the sheet does.
func ParseLedger(values [][]any) []LedgerRow {
	if len(values) <= 1 {
		return nil
	}
	rows := make([]LedgerRow, 0, len(values)-1)
	for i, cells := range values[1:] {
		rows = append(rows, LedgerRow{
			Number:       i + 2,
			Source:       CellString(cells, 0),
			Title:        CellString(cells, 1),
			URL:          CellString(cells, 2),
			PostedAt:     CellString(cells, 3),
			Attribution:  CellString(cells, 4),
			Sentiment:    CellString(cells, 5),
			Category:     CellString(cells, 6),
			DedupKey:     CellString(cells, 7),
			PaidCategory: CellString(cells, 8),
		})
	}
	return rows
}

func cell(cells []any, i int) any {
	if i >= len(cells) {
		return nil
	}
	return cells[i]
}

// CellString returns cell i as trimmed text; absent cells are "".
func CellString(cells []any, i int) string {
	switch v := cell(cells, i).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
