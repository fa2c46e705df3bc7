package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
)

// Anthropic is a Completer backed by the Claude Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

var _ Completer = (*Anthropic)(nil)

// NewAnthropic creates a Claude API client
func NewAnthropic(opts Options) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: set the ANTHROPIC_API_KEY environment variable", ErrMissingAPIKey)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	a := &Anthropic{
		client:      anthropic.NewClient(reqOpts...),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
	if a.model == "" {
		a.model = constants.DefaultAnthropicModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = constants.DefaultMaxTokens
	}
	return a, nil
}

// Complete sends the conversation to Claude.
func (a *Anthropic) Complete(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error) {
	params, err := a.buildParams(messages)
	if err != nil {
		return nil, err
	}

	log.Debug("calling anthropic", "model", a.model, "messages", len(params.Messages))

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	// Extract text from response
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return completion(string(message.Model), sb.String()), nil
}

func (a *Anthropic) buildParams(messages []model.ChatMessage) (anthropic.MessageNewParams, error) {
	system, turns, err := splitMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.maxTokens),
		Temperature: anthropic.Float(a.temperature),
	}

	for _, s := range system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}

	for _, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.texts))
		for _, text := range t.texts {
			blocks = append(blocks, anthropic.NewTextBlock(text))
		}
		if t.role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return params, nil
}
