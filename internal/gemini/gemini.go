package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/newsledger/internal/classify"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	requestTimeout = 90 * time.Second
)

// Classifier labels headlines with Gemini. The model is asked for JSON
// constrained by a response schema; the reply is still repaired by
// classify.ParseResponse since the schema is not always honoured.
type Classifier struct {
	client       *genai.Client
	model        string
	categories   []string
	instructions string
}

var _ classify.Classifier = (*Classifier)(nil)

func NewClassifier(ctx context.Context, apiKey, model string, categories []string, instructions string) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Classifier{
		client:       client,
		model:        model,
		categories:   categories,
		instructions: instructions,
	}, nil
}

func (c *Classifier) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Classifier) Name() string { return "gemini" }

func (c *Classifier) Classify(ctx context.Context, items []classify.Item) (string, error) {
	prompt, err := classify.BuildPrompt(items, c.categories, c.instructions)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = labelSchema(c.categories)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

func labelSchema(categories []string) *genai.Schema {
	category := &genai.Schema{Type: genai.TypeString}
	if len(categories) > 0 {
		category.Format = "enum"
		category.Enum = categories
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"row_id": {Type: genai.TypeInteger},
				"sentiment": {
					Type:   genai.TypeString,
					Format: "enum",
					Enum:   []string{classify.Positive, classify.Negative, classify.Neutral},
				},
				"category": category,
			},
			Required: []string{"row_id", "sentiment", "category"},
		},
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from Gemini")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response from Gemini")
	}
	return sb.String(), nil
}
