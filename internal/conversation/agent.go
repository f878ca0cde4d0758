package conversation

import (
	"context"
	"strings"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// AgentRequest is what the agent runtime receives for one turn.
type AgentRequest struct {
	ThreadID     string
	Messages     []*Message
	SystemPrompt string
}

// AgentResponse is one completed agent turn.
type AgentResponse struct {
	Content   string
	ToolCalls []ToolCall
	Metadata  map[string]any
}

// Validate requires content or at least one valid tool call.
func (r *AgentResponse) Validate() error {
	if strings.TrimSpace(r.Content) == "" && len(r.ToolCalls) == 0 {
		return apperr.NewValidation("content", "agent response must have content or tool calls")
	}
	for _, tc := range r.ToolCalls {
		if err := tc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AgentService is the language-model runtime behind a conversation.
type AgentService interface {
	Invoke(ctx context.Context, req AgentRequest) (*AgentResponse, error)
	// Stream delivers text chunks to sink in order. A sink error aborts the stream.
	Stream(ctx context.Context, req AgentRequest, sink func(chunk string) error) error
}

// ThreadRepository persists threads and messages.
// Lookups return (nil, nil) or false when nothing matches.
type ThreadRepository interface {
	CreateThread(ctx context.Context, t *Thread) (*Thread, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context) ([]*Thread, error)
	UpdateThreadTitle(ctx context.Context, id, title string) (bool, error)
	// DeleteThread removes the thread, its messages and its plans.
	DeleteThread(ctx context.Context, id string) (bool, error)
	SaveMessage(ctx context.Context, m *Message) (*Message, error)
	// GetMessages returns messages oldest first. limit <= 0 returns all;
	// otherwise the most recent limit messages are returned.
	GetMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)
}
