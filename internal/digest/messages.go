package digest

import (
	"fmt"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
)

const (
	systemPrompt  = "You are a senior and helpful technical analyst. You will read a given GitHub issue contents and summary it later"
	summaryPrompt = "Write the summary of all given issues into one condensed paragraph"
)

// BuildMessages returns the conversation sent to the model: the system prompt,
// one assistant message per issue, the summary request and any extra instructions.
func BuildMessages(issues []model.Issue, extra ...string) []model.ChatMessage {
	messages := make([]model.ChatMessage, 0, len(issues)+2+len(extra))
	messages = append(messages, model.ChatMessage{Role: model.RoleSystem, Content: systemPrompt})

	for _, issue := range issues {
		messages = append(messages, model.ChatMessage{
			Role:    model.RoleAssistant,
			Content: fmt.Sprintf("#%d %s %s", issue.Number, issue.Title, issue.Body),
		})
	}

	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: summaryPrompt})
	for _, e := range extra {
		if strings.TrimSpace(e) == "" {
			continue
		}
		messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: e})
	}
	return messages
}
