package model

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// ChatMessage is a single message sent to a chat-completion backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Choice is one candidate answer of a completion.
type Choice struct {
	Index   int         `json:"index"`
	Message ChatMessage `json:"message"`
}

// Completion is the normalised response of a chat-completion backend.
type Completion struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// FirstContent returns the content of the first choice, if any.
func (c *Completion) FirstContent() (string, bool) {
	if c == nil || len(c.Choices) == 0 {
		return "", false
	}
	return c.Choices[0].Message.Content, true
}
