package conversation

import "context"

// Collaborator roles understood by every LLMClient. Provider adapters translate
// these into their own vocabulary.
const (
	ChatRoleSystem = "system"
	ChatRoleUser   = "user"
	ChatRoleModel  = "model"
)

// ChatMessage is the provider-neutral message handed to an LLMClient.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSONResponse asks the provider to constrain output to a JSON document
	// when it supports that natively.
	JSONResponse bool
	// Purpose labels the call for metrics ("reply", "need", "reflection").
	Purpose string
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// LLMClientFunc adapts a function to LLMClient.
type LLMClientFunc func(ctx context.Context, req LLMRequest) (LLMResponse, error)

func (f LLMClientFunc) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	return f(ctx, req)
}
