// Package conversation holds chat threads, their messages and the use cases
// that pass a thread's history to the agent runtime.
package conversation

import (
	"strings"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/util"
)

// DefaultThreadTitle is used when a thread has no title yet.
const DefaultThreadTitle = "New Conversation"

// Role identifies the author of a message.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// ParseRole converts s into a Role. "user" and "assistant" are accepted as aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human", "user":
		return RoleHuman, nil
	case "ai", "assistant":
		return RoleAI, nil
	case "system":
		return RoleSystem, nil
	case "tool":
		return RoleTool, nil
	default:
		return "", apperr.NewValidation("role", "invalid message role: "+s)
	}
}

// Thread is one conversation.
type Thread struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewThreadID returns a fresh opaque thread id.
func NewThreadID() string {
	return util.NewID(util.ThreadPrefix)
}

// NewThread returns a thread with id, generating one when id is blank.
func NewThread(id string) *Thread {
	id = strings.TrimSpace(id)
	if id == "" {
		id = NewThreadID()
	}
	now := time.Now().UTC()
	return &Thread{
		ID:        id,
		Title:     DefaultThreadTitle,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Message is one entry in a thread's history.
type Message struct {
	ID        int64          `json:"id"`
	ThreadID  string         `json:"thread_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMessage validates and returns an unsaved message.
func NewMessage(threadID string, role Role, content string) (*Message, error) {
	m := &Message{
		ThreadID:  strings.TrimSpace(threadID),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the thread reference, role and content.
func (m *Message) Validate() error {
	if m.ThreadID == "" {
		return apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	if _, err := ParseRole(string(m.Role)); err != nil {
		return err
	}
	if strings.TrimSpace(m.Content) == "" {
		return apperr.NewValidation("content", "message content cannot be empty")
	}
	return nil
}

// ToolCall describes one tool invocation requested by the agent.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id"`
}

// Validate requires a tool name and a call id.
func (tc ToolCall) Validate() error {
	if strings.TrimSpace(tc.ToolName) == "" {
		return apperr.NewValidation("tool_name", "tool name cannot be empty")
	}
	if strings.TrimSpace(tc.CallID) == "" {
		return apperr.NewValidation("call_id", "tool call id cannot be empty")
	}
	return nil
}
