package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
)

// Gemini is a Completer backed by the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

var _ Completer = (*Gemini)(nil)

// NewGemini creates a Gemini client. Close it when done.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: set the GEMINI_API_KEY environment variable", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &Gemini{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
	if g.model == "" {
		g.model = constants.DefaultGeminiModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = constants.DefaultMaxTokens
	}
	return g, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Complete replays all but the last turn as chat history and sends the last one.
func (g *Gemini) Complete(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error) {
	system, history, last, err := toGemini(messages)
	if err != nil {
		return nil, err
	}

	gm := g.client.GenerativeModel(g.model)
	gm.SetTemperature(float32(g.temperature))
	gm.SetMaxOutputTokens(int32(g.maxTokens))
	gm.SystemInstruction = system

	cs := gm.StartChat()
	cs.History = history

	log.Debug("calling gemini", "model", g.model, "history", len(history))

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to call Gemini API: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	return completion(g.model, sb.String()), nil
}

// toGemini maps messages to Gemini contents. The conversation must end with a user turn.
func toGemini(messages []model.ChatMessage) (system *genai.Content, history []*genai.Content, last *genai.Content, err error) {
	sys, turns, err := splitMessages(messages)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sys) > 0 {
		system = &genai.Content{Parts: textParts(sys)}
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: textParts(t.texts)})
	}

	last = contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, nil, fmt.Errorf("%w: the last message must come from the user", ErrInvalidMessages)
	}
	return system, contents[:len(contents)-1], last, nil
}

func textParts(texts []string) []genai.Part {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return parts
}
