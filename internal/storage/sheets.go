package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Values are read unformatted so serial dates arrive as numbers, and written
// raw so "25/8/20 15:01" stays text.
const (
	valueRender    = "UNFORMATTED_VALUE"
	dateTimeRender = "SERIAL_NUMBER"
	valueInput     = "RAW"
)

// SheetsStore is the Google Sheets API v4 backend.
type SheetsStore struct {
	srv *sheets.Service
}

var _ Store = (*SheetsStore)(nil)

// NewSheetsStore authenticates with service-account credentials JSON.
func NewSheetsStore(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*SheetsStore, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}
	return &SheetsStore{srv: srv}, nil
}

// NewSheetsStoreWithService wraps an existing service, e.g. one pointed at a
// test endpoint.
func NewSheetsStoreWithService(srv *sheets.Service) *SheetsStore {
	return &SheetsStore{srv: srv}
}

func (s *SheetsStore) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := s.srv.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s: %v", ErrSpreadsheetNotFound, spreadsheetID, err)
		}
		return nil, fmt.Errorf("open spreadsheet %s: %w", spreadsheetID, err)
	}

	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (s *SheetsStore) ReadValues(ctx context.Context, spreadsheetID, sheet string) ([][]any, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(spreadsheetID, QuoteSheet(sheet)).
		ValueRenderOption(valueRender).
		DateTimeRenderOption(dateTimeRender).
		Context(ctx).
		Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
		}
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (s *SheetsStore) CreateSheet(ctx context.Context, spreadsheetID, sheet string, header []string) error {
	add := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: sheet,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	_, err := s.srv.Spreadsheets.Values.Update(spreadsheetID, QuoteSheet(sheet)+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption(valueInput).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	return nil
}

func (s *SheetsStore) AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.srv.Spreadsheets.Values.Append(spreadsheetID, QuoteSheet(sheet)+"!A1", &sheets.ValueRange{
		Values: rows,
	}).ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (s *SheetsStore) UpdateCells(ctx context.Context, spreadsheetID string, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  u.Range,
			Values: [][]interface{}{u.Values},
		})
	}
	_, err := s.srv.Spreadsheets.Values.BatchUpdate(spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInput,
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update %d ranges: %w", len(updates), err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// The API reports an unknown sheet title as an unparseable range.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(gerr.Message, "Unable to parse range")
}
