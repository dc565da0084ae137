package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps workbooks in a JSON file:
// {"<spreadsheet id>": {"<sheet>": [[cell, ...], ...]}}.
// With an empty path it lives in memory only.
type FileStore struct {
	filePath  string
	workbooks map[string]map[string][][]any
	mu        sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store; call Load to read an existing file.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{
		filePath:  filePath,
		workbooks: make(map[string]map[string][][]any),
	}
}

// Load reads the workbook file. A missing or empty file is an empty store.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read workbook file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var books map[string]map[string][][]any
	if err := json.Unmarshal(data, &books); err != nil {
		return fmt.Errorf("failed to unmarshal workbook file: %w", err)
	}
	for id, sheets := range books {
		if sheets == nil {
			sheets = make(map[string][][]any)
		}
		fs.workbooks[id] = sheets
	}
	return nil
}

// save writes the store through a temp file; caller holds mu.
func (fs *FileStore) save() error {
	if fs.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(fs.workbooks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workbooks: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), ".workbook-*.json")
	if err != nil {
		return fmt.Errorf("failed to write workbook file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write workbook file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write workbook file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		return fmt.Errorf("failed to replace workbook file: %w", err)
	}
	return nil
}

// Seed replaces a sheet's contents, creating the workbook if needed.
func (fs *FileStore) Seed(spreadsheetID, sheet string, values [][]any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	book, ok := fs.workbooks[spreadsheetID]
	if !ok {
		book = make(map[string][][]any)
		fs.workbooks[spreadsheetID] = book
	}
	book[sheet] = copyGrid(values)
	return fs.save()
}

// AddSpreadsheet registers an empty workbook.
func (fs *FileStore) AddSpreadsheet(spreadsheetID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.workbooks[spreadsheetID]; !ok {
		fs.workbooks[spreadsheetID] = make(map[string][][]any)
	}
	return fs.save()
}

func (fs *FileStore) SheetTitles(_ context.Context, spreadsheetID string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	book, ok := fs.workbooks[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, spreadsheetID)
	}
	titles := make([]string, 0, len(book))
	for title := range book {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles, nil
}

func (fs *FileStore) ReadValues(_ context.Context, spreadsheetID, sheet string) ([][]any, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	grid, err := fs.sheet(spreadsheetID, sheet)
	if err != nil {
		return nil, err
	}
	return copyGrid(grid), nil
}

func (fs *FileStore) CreateSheet(_ context.Context, spreadsheetID, sheet string, header []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	book, ok := fs.workbooks[spreadsheetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, spreadsheetID)
	}
	if _, exists := book[sheet]; exists {
		return fmt.Errorf("sheet %q already exists", sheet)
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	book[sheet] = [][]any{row}
	return fs.save()
}

func (fs *FileStore) AppendRows(_ context.Context, spreadsheetID, sheet string, rows [][]any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	grid, err := fs.sheet(spreadsheetID, sheet)
	if err != nil {
		return err
	}
	fs.workbooks[spreadsheetID][sheet] = append(grid, copyGrid(rows)...)
	return fs.save()
}

func (fs *FileStore) UpdateCells(_ context.Context, spreadsheetID string, updates []CellUpdate) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, u := range updates {
		sheet, col, row, span, err := ParseA1(u.Range)
		if err != nil {
			return err
		}
		if len(u.Values) != span {
			return fmt.Errorf("range %s takes %d values, got %d", u.Range, span, len(u.Values))
		}
		grid, err := fs.sheet(spreadsheetID, sheet)
		if err != nil {
			return err
		}
		for len(grid) < row {
			grid = append(grid, []any{})
		}
		cells := grid[row-1]
		for len(cells) < col+span {
			cells = append(cells, "")
		}
		copy(cells[col:], u.Values)
		grid[row-1] = cells
		fs.workbooks[spreadsheetID][sheet] = grid
	}
	return fs.save()
}

// sheet returns the live grid; caller holds mu.
func (fs *FileStore) sheet(spreadsheetID, sheet string) ([][]any, error) {
	book, ok := fs.workbooks[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, spreadsheetID)
	}
	grid, ok := book[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return grid, nil
}

func copyGrid(in [][]any) [][]any {
	out := make([][]any, len(in))
	for i, row := range in {
		out[i] = append([]any(nil), row...)
	}
	return out
}
