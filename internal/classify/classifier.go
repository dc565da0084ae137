// Package classify labels ledger rows with a sentiment and a category using an
// external, best-effort classifier.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one title submitted for classification. RowID is the ledger row
// number, so responses can be matched without echoing titles back.
type Item struct {
	RowID int    `json:"row_id"`
	Title string `json:"title"`
}

// Classifier sends a batch to a model and returns its raw response text.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, items []Item) (string, error)
}

// DefaultCategories is used when the operator configures no taxonomy.
var DefaultCategories = []string{
	"company", "product", "technology", "industry", "policy", "economy",
	"incident", "sports", "entertainment", "other",
}

const promptTemplate = `You label news headlines.

For every item below return one object with:
- "row_id": the row_id of the item, unchanged
- "sentiment": exactly one of "positive", "negative", "neutral", judged from the point of view of the company or product in the headline
- "category": exactly one of: %s

Answer with a JSON array only, one object per item, no prose.
%s
Items:
%s`

// BuildPrompt renders the instruction contract for a batch. Extra operator
// instructions are inserted before the items.
func BuildPrompt(items []Item, categories []string, instructions string) (string, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}

	extra := ""
	if s := strings.TrimSpace(instructions); s != "" {
		extra = "\n" + s + "\n"
	}
	return fmt.Sprintf(promptTemplate, strings.Join(categories, ", "), extra, payload), nil
}
