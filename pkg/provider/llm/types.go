package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// UserMessage is shorthand for a single user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CompletionRequest is a single prompt sent to a model. At least one message
// is required.
type CompletionRequest struct {
	Messages []Message

	// SystemPrompt, when set, is sent ahead of Messages with the system role.
	SystemPrompt string

	// Temperature in [0, 2]. Zero keeps the backend default.
	Temperature float64

	// MaxTokens caps the completion length. Zero keeps the backend default.
	MaxTokens int
}

// Conversation returns the messages to send, with SystemPrompt first when set.
func (r CompletionRequest) Conversation() []Message {
	if r.SystemPrompt == "" {
		return r.Messages
	}
	out := make([]Message, 0, len(r.Messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: r.SystemPrompt})
	return append(out, r.Messages...)
}

// MaxTokensFor returns r.MaxTokens bounded by the model's output limit. Zero
// means the caller did not ask for a cap.
func (r CompletionRequest) MaxTokensFor(caps ModelCapabilities) int {
	if r.MaxTokens <= 0 {
		return 0
	}
	if caps.MaxOutputTokens > 0 && r.MaxTokens > caps.MaxOutputTokens {
		return caps.MaxOutputTokens
	}
	return r.MaxTokens
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Usage is the token accounting reported by the backend. Backends that do
// not report usage leave it zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelCapabilities describes the bound model's limits.
type ModelCapabilities struct {
	// ContextWindow is the token budget for prompt plus completion.
	ContextWindow int

	// MaxOutputTokens is the longest completion the model produces.
	MaxOutputTokens int
}
