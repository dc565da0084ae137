// Package storage reads and writes the spreadsheet tables the pipeline works
// on: source feeds in the input workbook and daily ledgers in the output one.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrSheetNotFound is returned when a workbook has no sheet of that name.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrSpreadsheetNotFound is returned when a workbook cannot be opened.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// CellUpdate writes Values into the cells of one A1 range on a single row.
type CellUpdate struct {
	Range  string
	Values []any
}

// Store is the table backend.
type Store interface {
	// SheetTitles lists the sheets of a workbook; it doubles as an open check.
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	// ReadValues returns every populated row of a sheet, header included.
	ReadValues(ctx context.Context, spreadsheetID, sheet string) ([][]any, error)
	// CreateSheet adds a sheet whose first row is header.
	CreateSheet(ctx context.Context, spreadsheetID, sheet string, header []string) error
	// AppendRows adds rows after the last populated row of a sheet.
	AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]any) error
	// UpdateCells applies all updates in one request.
	UpdateCells(ctx context.Context, spreadsheetID string, updates []CellUpdate) error
}

// QuoteSheet quotes a sheet title for A1 notation. Titles such as "250820"
// would otherwise be read as cell references.
func QuoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// A1 addresses a single cell, e.g. A1("250820", "H", 2) = "'250820'!H2".
func A1(sheet, col string, row int) string {
	return fmt.Sprintf("%s!%s%d", QuoteSheet(sheet), col, row)
}

// A1Span addresses the cells from..to of one row, e.g. "'250820'!F2:G2".
func A1Span(sheet, from, to string, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", QuoteSheet(sheet), from, row, to, row)
}

var a1Cells = regexp.MustCompile(`^([A-Z]+)(\d+)(?::([A-Z]+)(\d+))?$`)

// ParseA1 splits a single-row A1 range into sheet title, 0-based first
// column, 1-based row and the number of columns spanned.
func ParseA1(rng string) (sheet string, col, row, span int, err error) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return "", 0, 0, 0, fmt.Errorf("range %q has no sheet", rng)
	}
	sheet = rng[:i]
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	m := a1Cells.FindStringSubmatch(rng[i+1:])
	if m == nil {
		return "", 0, 0, 0, fmt.Errorf("range %q is not a cell or row span", rng)
	}
	col = columnIndex(m[1])
	row, _ = strconv.Atoi(m[2])
	span = 1
	if m[3] != "" {
		if m[4] != m[2] {
			return "", 0, 0, 0, fmt.Errorf("range %q spans several rows", rng)
		}
		span = columnIndex(m[3]) - col + 1
		if span < 1 {
			return "", 0, 0, 0, fmt.Errorf("range %q is reversed", rng)
		}
	}
	if row < 1 {
		return "", 0, 0, 0, fmt.Errorf("range %q has row 0", rng)
	}
	return sheet, col, row, span, nil
}

func columnIndex(letters string) int {
	n := 0
	for _, r := range letters {
		n = n*26 + int(r-'A'+1)
	}
	return n - 1
}
