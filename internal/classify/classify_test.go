package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsledger/internal/metrics"
	"github.com/deusflow/newsledger/internal/news"
	"github.com/deusflow/newsledger/internal/ratelimit"
)

// stubClassifier answers each call with the next scripted response. A nil
// reply makes it label every item neutral/company.
type stubClassifier struct {
	replies []func([]Item) (string, error)
	calls   [][]Item
}

func (s *stubClassifier) Name() string { return "stub" }

func (s *stubClassifier) Classify(_ context.Context, items []Item) (string, error) {
	n := len(s.calls)
	s.calls = append(s.calls, items)
	if n < len(s.replies) && s.replies[n] != nil {
		return s.replies[n](items)
	}
	return labelAll(items, "neutral", "company"), nil
}

func labelAll(items []Item, sentiment, category string) string {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{"row_id": it.RowID, "sentiment": sentiment, "category": category}
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ledger(n int) []news.LedgerRow {
	rows := make([]news.LedgerRow, n)
	for i := range rows {
		rows[i] = news.LedgerRow{
			Number: i + 2,
			Title:  fmt.Sprintf("title %d", i),
			URL:    fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return rows
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	raw := "Sure, here you go:\n```json\n[{\"row_id\": 2, \"sentiment\": \"Positive\", \"category\": \" product \"},\n {\"row_id\": \"3\", \"sentiment\": \"mostly negative\", \"category\": null},\n {\"row_id\": 4, \"sentiment\": \"???\"},\n \"junk\", {\"sentiment\": \"neutral\"}]\n```\nHope that helps."
	labels, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, []Label{
		{RowID: 2, Sentiment: Positive, Category: "product"},
		{RowID: 3, Sentiment: Negative},
		{RowID: 4, Sentiment: Neutral},
	}, labels)
}

func TestParseResponse_SkipsFractionalRowIDs(t *testing.T) {
	t.Parallel()

	labels, err := ParseResponse(`[
		{"row_id": 12.7, "sentiment": "positive", "category": "EV"},
		{"row_id": "13.5", "sentiment": "negative", "category": "EV"},
		{"row_id": 14.0, "sentiment": "neutral", "category": "EV"}
	]`)
	require.NoError(t, err)
	assert.Equal(t, []Label{{RowID: 14, Sentiment: Neutral, Category: "EV"}}, labels)
}

func TestParseResponse_Failures(t *testing.T) {
	t.Parallel()

	_, err := ParseResponse("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoArray)

	_, err = ParseResponse(`[{"row_id": 2, "sentiment": "positive"`)
	assert.Error(t, err)

	_, err = ParseResponse(`[{"row_id": 2,}]`)
	assert.Error(t, err)
}

func TestNormalizeSentiment(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"positive":          Positive,
		" NEGATIVE ":        Negative,
		"Neutral.":          Neutral,
		"slightly positive": Positive,
		"ネガティブ":             Negative,
		"中立":                Neutral,
		"mixed":             Neutral,
		"":                  Neutral,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSentiment(in), in)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p, err := BuildPrompt([]Item{{RowID: 7, Title: "日産 新型リーフ"}}, []string{"EV", "other"}, "Treat recalls as negative.")
	require.NoError(t, err)
	assert.Contains(t, p, `"row_id":7`)
	assert.Contains(t, p, "日産 新型リーフ")
	assert.Contains(t, p, "EV, other")
	assert.Contains(t, p, "Treat recalls as negative.")

	p, err = BuildPrompt(nil, nil, "")
	require.NoError(t, err)
	assert.Contains(t, p, strings.Join(DefaultCategories, ", "))
}

func TestEligibleAndBatches(t *testing.T) {
	t.Parallel()

	rows := ledger(5)
	rows[0].Sentiment, rows[0].Category = Positive, "product"
	rows[1].Sentiment = Negative
	rows[2].Title = "  "

	eligible := Eligible(rows)
	require.Len(t, eligible, 3)
	assert.Equal(t, []int{3, 5, 6}, []int{eligible[0].Number, eligible[1].Number, eligible[2].Number})

	batches := Batches(ledger(85), DefaultBatchSize)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 40)
	assert.Len(t, batches[2], 5)
	assert.Empty(t, Batches(nil, 40))
}

func TestMerge_PartialBatchResilience(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{replies: []func([]Item) (string, error){
		nil,
		func([]Item) (string, error) { return "the model refused", nil },
		func([]Item) (string, error) { return "", errors.New("503 unavailable") },
	}}
	m := metrics.New()
	merger := &Merger{Classifier: stub, BatchSize: 40, Metrics: m, Logger: quietLogger()}

	updates := merger.Merge(context.Background(), ledger(130))
	require.Len(t, stub.calls, 4)
	// Batches 1 and 4 succeed.
	assert.Len(t, updates, 40+10)
	assert.Equal(t, 2, updates[0].Row)
	assert.Equal(t, 122, updates[40].Row)

	stats := m.GetStats()
	assert.EqualValues(t, 4, stats["batches_submitted"])
	assert.EqualValues(t, 2, stats["batches_failed"])
}

func TestMerge_NeverResubmitsLabeledRows(t *testing.T) {
	t.Parallel()

	rows := ledger(3)
	rows[0].Sentiment, rows[0].Category = Negative, "incident"
	stub := &stubClassifier{}
	merger := &Merger{Classifier: stub, Metrics: metrics.New(), Logger: quietLogger()}

	updates := merger.Merge(context.Background(), rows)
	require.Len(t, stub.calls, 1)
	for _, it := range stub.calls[0] {
		assert.NotEqual(t, 2, it.RowID)
	}
	assert.Len(t, updates, 2)

	// Applying the updates leaves nothing to classify.
	for _, u := range updates {
		for i := range rows {
			if rows[i].Number == u.Row {
				rows[i].Sentiment, rows[i].Category = u.Sentiment, u.Category
			}
		}
	}
	assert.Empty(t, merger.Merge(context.Background(), rows))
	assert.Len(t, stub.calls, 1)
}

func TestMerge_KeepsExistingFieldsAndIgnoresForeignRows(t *testing.T) {
	t.Parallel()

	rows := ledger(3)
	rows[0].Sentiment = Positive
	stub := &stubClassifier{replies: []func([]Item) (string, error){
		func([]Item) (string, error) {
			return `[
				{"row_id": 2, "sentiment": "negative", "category": "product"},
				{"row_id": 3, "sentiment": "", "category": ""},
				{"row_id": 4, "sentiment": "neutral", "category": "economy"},
				{"row_id": 4, "sentiment": "positive", "category": "sports"},
				{"row_id": 99, "sentiment": "neutral", "category": "other"}
			]`, nil
		},
	}}
	merger := &Merger{Classifier: stub, Metrics: metrics.New(), Logger: quietLogger()}

	updates := merger.Merge(context.Background(), rows)
	assert.Equal(t, []LabelUpdate{
		{Row: 2, URL: "https://example.com/0", Title: "title 0", Sentiment: Positive, Category: "product"},
		{Row: 4, URL: "https://example.com/2", Title: "title 2", Sentiment: Neutral, Category: "economy"},
	}, updates)
}

func TestMerge_BudgetDefersBatches(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{}
	m := metrics.New()
	merger := &Merger{
		Classifier: stub,
		BatchSize:  10,
		Limiter:    ratelimit.NewAIRateLimiter(nil, 2),
		Metrics:    m,
		Logger:     quietLogger(),
	}

	updates := merger.Merge(context.Background(), ledger(45))
	assert.Len(t, stub.calls, 2)
	assert.Len(t, updates, 20)
	assert.EqualValues(t, 3, m.GetStats()["batches_deferred"])
}
