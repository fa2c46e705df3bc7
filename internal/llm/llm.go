// Package llm adapts chat-completion backends to a common interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
)

// Supported providers
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// leadingUserTurn opens a conversation whose first message would otherwise come
// from the assistant. Both backends require the user to speak first.
const leadingUserTurn = "Here is the material for the request."

var (
	// ErrMissingAPIKey is returned when the selected provider has no API key.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrNoMessages is returned when there is nothing to send.
	ErrNoMessages = errors.New("no messages to send")
	// ErrInvalidMessages is returned for messages a backend cannot accept.
	ErrInvalidMessages = errors.New("invalid chat messages")
)

// Completer produces a chat completion for a list of messages.
type Completer interface {
	Complete(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error)
}

// Options selects and tunes a backend.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	APIKey      string
	// BaseURL overrides the API endpoint. Only the anthropic backend uses it.
	BaseURL string
}

// New creates the Completer for opts.Provider. Callers should close the result
// when it implements io.Closer.
func New(ctx context.Context, opts Options) (Completer, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderAnthropic:
		return NewAnthropic(opts)
	case ProviderGemini:
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (use %s or %s)", opts.Provider, ProviderAnthropic, ProviderGemini)
	}
}

// turn is a run of consecutive non-system messages from the same speaker.
type turn struct {
	role  model.Role
	texts []string
}

// splitMessages separates system text from the conversation, merges consecutive
// messages of the same role and drops empty ones. A conversation that starts
// with the assistant gets a user turn in front.
func splitMessages(messages []model.ChatMessage) (system []string, turns []turn, err error) {
	if len(messages) == 0 {
		return nil, nil, ErrNoMessages
	}

	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, nil, fmt.Errorf("%w: message %d has role %q", ErrInvalidMessages, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == model.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].texts = append(turns[n-1].texts, m.Content)
			continue
		}
		turns = append(turns, turn{role: m.Role, texts: []string{m.Content}})
	}

	if len(turns) == 0 {
		return nil, nil, fmt.Errorf("%w: only system messages", ErrNoMessages)
	}
	if turns[0].role == model.RoleAssistant {
		turns = append([]turn{{role: model.RoleUser, texts: []string{leadingUserTurn}}}, turns...)
	}
	return system, turns, nil
}

// completion wraps text as a single-choice completion. Empty text yields no choices.
func completion(modelName, text string) *model.Completion {
	c := &model.Completion{Model: modelName, Choices: []model.Choice{}}
	if text == "" {
		return c
	}
	c.Choices = append(c.Choices, model.Choice{
		Index:   0,
		Message: model.ChatMessage{Role: model.RoleAssistant, Content: text},
	})
	return c
}
