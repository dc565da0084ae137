package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestA1Helpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "'250820'!H2", A1("250820", "H", 2))
	assert.Equal(t, "'250820'!F12:G12", A1Span("250820", "F", "G", 12))
	assert.Equal(t, "'it''s'!A1", A1("it's", "A", 1))

	sheet, col, row, span, err := ParseA1("'250820'!F12:G12")
	require.NoError(t, err)
	assert.Equal(t, "250820", sheet)
	assert.Equal(t, 5, col)
	assert.Equal(t, 12, row)
	assert.Equal(t, 2, span)

	sheet, col, _, span, err = ParseA1("'it''s'!AA3")
	require.NoError(t, err)
	assert.Equal(t, "it's", sheet)
	assert.Equal(t, 26, col)
	assert.Equal(t, 1, span)

	for _, bad := range []string{"H2", "'s'!F2:G3", "'s'!G2:F2", "'s'!2", "'s'!A0"} {
		_, _, _, _, err := ParseA1(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.json")

	fs := NewFileStore(path)
	require.NoError(t, fs.Load())
	require.NoError(t, fs.AddSpreadsheet("out"))

	_, err := fs.ReadValues(ctx, "out", "250820")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	_, err = fs.SheetTitles(ctx, "nope")
	assert.ErrorIs(t, err, ErrSpreadsheetNotFound)

	require.NoError(t, fs.CreateSheet(ctx, "out", "250820", []string{"a", "b", "c"}))
	assert.Error(t, fs.CreateSheet(ctx, "out", "250820", []string{"a"}))
	require.NoError(t, fs.AppendRows(ctx, "out", "250820", [][]any{{"1", "2"}, {"3", "4", "5"}}))
	require.NoError(t, fs.UpdateCells(ctx, "out", []CellUpdate{
		{Range: A1("250820", "C", 2), Values: []any{"x"}},
		{Range: A1Span("250820", "A", "B", 3), Values: []any{"p", "q"}},
	}))
	assert.Error(t, fs.UpdateCells(ctx, "out", []CellUpdate{{Range: A1Span("250820", "A", "B", 3), Values: []any{"only one"}}}))

	// Reload from disk.
	again := NewFileStore(path)
	require.NoError(t, again.Load())
	titles, err := again.SheetTitles(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{"250820"}, titles)

	got, err := again.ReadValues(ctx, "out", "250820")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"a", "b", "c"},
		{"1", "2", "x"},
		{"p", "q", "5"},
	}, got)
}

func TestFileStore_ReadReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fs := NewFileStore("")
	require.NoError(t, fs.Seed("in", "MSN", [][]any{{"title"}, {"a"}}))
	got, err := fs.ReadValues(ctx, "in", "MSN")
	require.NoError(t, err)
	got[1][0] = "mutated"

	again, err := fs.ReadValues(ctx, "in", "MSN")
	require.NoError(t, err)
	assert.Equal(t, "a", again[1][0])
}

func TestSheetsStore_ReadAndMissingSheet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/values/'MSN'"):
			assert.Equal(t, valueRender, r.URL.Query().Get("valueRenderOption"))
			json.NewEncoder(w).Encode(map[string]any{
				"range":  "MSN!A1:D2",
				"values": [][]any{{"title", "url", "posted", "via"}, {"t", "u", 45889.5, "v"}},
			})
		case strings.Contains(r.URL.Path, "/values/"):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 400, "message": "Unable to parse range: 'Nope'", "status": "INVALID_ARGUMENT"},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"sheets": []any{
					map[string]any{"properties": map[string]any{"title": "MSN"}},
					map[string]any{"properties": map[string]any{"title": "Google"}},
				},
			})
		}
	}))
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	store := NewSheetsStoreWithService(svc)
	ctx := context.Background()

	titles, err := store.SheetTitles(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSN", "Google"}, titles)

	values, err := store.ReadValues(ctx, "book", "MSN")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 45889.5, values[1][2])

	_, err = store.ReadValues(ctx, "book", "Nope")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}
