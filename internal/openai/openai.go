// Package openai is the OpenAI chat-completion classifier backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/deusflow/newsledger/internal/classify"
)

const (
	DefaultModel   = goopenai.GPT4oMini
	requestTimeout = 60 * time.Second
	maxTokens      = 4000
)

const systemPrompt = "You are a news desk assistant. You answer with a JSON array only."

type Classifier struct {
	client       *goopenai.Client
	model        string
	categories   []string
	instructions string
}

var _ classify.Classifier = (*Classifier)(nil)

func NewClassifier(apiKey, model string, categories []string, instructions string) *Classifier {
	return NewClassifierWithConfig(goopenai.DefaultConfig(apiKey), model, categories, instructions)
}

// NewClassifierWithConfig allows a custom base URL or HTTP client.
func NewClassifierWithConfig(cfg goopenai.ClientConfig, model string, categories []string, instructions string) *Classifier {
	if model == "" {
		model = DefaultModel
	}
	return &Classifier{
		client:       goopenai.NewClientWithConfig(cfg),
		model:        model,
		categories:   categories,
		instructions: instructions,
	}
}

func (c *Classifier) Name() string { return "openai" }

func (c *Classifier) Classify(ctx context.Context, items []classify.Item) (string, error) {
	prompt, err := classify.BuildPrompt(items, c.categories, c.instructions)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         0,
		MaxCompletionTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
