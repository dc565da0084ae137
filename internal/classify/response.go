package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical sentiment labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

var sentiments = []string{Positive, Negative, Neutral}

var sentimentAliases = map[string]string{
	"ポジティブ":  Positive,
	"ネガティブ":  Negative,
	"ニュートラル": Neutral,
	"中立":     Neutral,
}

// ErrNoArray is returned when a response holds no bracketed array.
var ErrNoArray = errors.New("response contains no JSON array")

// Label is one repaired element of a classifier response.
type Label struct {
	RowID     int
	Sentiment string
	Category  string
}

type rawLabel struct {
	RowID     flexInt `json:"row_id"`
	Sentiment *string `json:"sentiment"`
	Category  *string `json:"category"`
}

// flexInt accepts 12, 12.0 and "12". Fractional ids are rejected.
type flexInt struct {
	n  int
	ok bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("row_id %s: %w", b, err)
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return fmt.Errorf("row_id %s is not an integer", b)
	}
	f.n, f.ok = int(v), true
	return nil
}

// ParseResponse extracts the labels from a raw response. Prose and markdown
// fences around the array are ignored. Elements that are not objects or lack
// a row_id are skipped; a response with no decodable array is an error.
func ParseResponse(raw string) ([]Label, error) {
	text := stripFences(raw)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, ErrNoArray
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &elems); err != nil {
		return nil, fmt.Errorf("failed to decode response array: %w", err)
	}

	labels := make([]Label, 0, len(elems))
	for _, e := range elems {
		if !bytes.HasPrefix(bytes.TrimSpace(e), []byte("{")) {
			continue
		}
		var rl rawLabel
		if err := json.Unmarshal(e, &rl); err != nil || !rl.RowID.ok {
			continue
		}
		l := Label{RowID: rl.RowID.n}
		if rl.Sentiment != nil && strings.TrimSpace(*rl.Sentiment) != "" {
			l.Sentiment = NormalizeSentiment(*rl.Sentiment)
		}
		if rl.Category != nil {
			l.Category = strings.TrimSpace(*rl.Category)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// NormalizeSentiment maps a free-form value to a canonical label: exact
// match, then case-insensitive containment, then known Japanese labels, else
// neutral.
func NormalizeSentiment(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, c := range sentiments {
		if v == c {
			return c
		}
	}
	for _, c := range sentiments {
		if strings.Contains(v, c) {
			return c
		}
	}
	for alias, c := range sentimentAliases {
		if strings.Contains(v, alias) {
			return c
		}
	}
	return Neutral
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
