package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// ChatRequest is the input of SendMessage and StreamChat.
type ChatRequest struct {
	Message      string `json:"message"`
	ThreadID     string `json:"thread_id"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Validate rejects a blank message or thread id.
func (r *ChatRequest) Validate() error {
	r.ThreadID = strings.TrimSpace(r.ThreadID)
	if strings.TrimSpace(r.Message) == "" {
		return apperr.NewValidation("message", "message cannot be empty")
	}
	if r.ThreadID == "" {
		return apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	return nil
}

// ChatResponse is the result of SendMessage.
type ChatResponse struct {
	Response  string         `json:"response"`
	ThreadID  string         `json:"thread_id"`
	MessageID int64          `json:"message_id"`
	Timestamp time.Time      `json:"timestamp"`
	ToolCalls []ToolCall     `json:"tool_calls"`
	Metadata  map[string]any `json:"metadata"`
}

// MessageResponse is one message in a history listing.
type MessageResponse struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageID int64     `json:"message_id"`
}

// ThreadHistoryResponse is the result of GetThreadHistory.
type ThreadHistoryResponse struct {
	ThreadID      string            `json:"thread_id"`
	Messages      []MessageResponse `json:"messages"`
	TotalMessages int               `json:"total_messages"`
}

// Service runs the conversation use cases.
type Service struct {
	threads ThreadRepository
	agent   AgentService
	logger  *slog.Logger
}

// NewService returns a Service. A nil logger uses slog.Default().
func NewService(threads ThreadRepository, agent AgentService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{threads: threads, agent: agent, logger: logger}
}

// SendMessage stores the user's message, runs one agent turn over the thread
// history and stores the reply.
func (s *Service) SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	history, err := s.prepareTurn(ctx, &req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.agent.Invoke(ctx, AgentRequest{ThreadID: req.ThreadID, Messages: history, SystemPrompt: req.SystemPrompt})
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	content := resp.Content
	if strings.TrimSpace(content) == "" {
		content = summarizeToolCalls(resp.ToolCalls)
	}
	saved, err := s.saveReply(ctx, req.ThreadID, content, resp.Metadata)
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent turn completed",
		"thread_id", req.ThreadID,
		"history", len(history),
		"tool_calls", len(resp.ToolCalls),
		"duration_ms", time.Since(start).Milliseconds())

	toolCalls := resp.ToolCalls
	if toolCalls == nil {
		toolCalls = []ToolCall{}
	}
	metadata := resp.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &ChatResponse{
		Response:  resp.Content,
		ThreadID:  req.ThreadID,
		MessageID: saved.ID,
		Timestamp: saved.CreatedAt,
		ToolCalls: toolCalls,
		Metadata:  metadata,
	}, nil
}

// StreamChat is SendMessage with the reply delivered to sink as it is produced.
// The concatenated reply is stored once the stream ends.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest, sink func(chunk string) error) error {
	history, err := s.prepareTurn(ctx, &req)
	if err != nil {
		return err
	}

	var sb strings.Builder
	err = s.agent.Stream(ctx, AgentRequest{ThreadID: req.ThreadID, Messages: history, SystemPrompt: req.SystemPrompt},
		func(chunk string) error {
			sb.WriteString(chunk)
			return sink(chunk)
		})
	if err != nil {
		return err
	}

	if strings.TrimSpace(sb.String()) == "" {
		s.logger.Warn("agent stream produced no content", "thread_id", req.ThreadID)
		return nil
	}
	_, err = s.saveReply(ctx, req.ThreadID, sb.String(), map[string]any{"streamed": true})
	return err
}

// GetThreadHistory returns the thread's messages oldest first. limit <= 0 returns all.
func (s *Service) GetThreadHistory(ctx context.Context, threadID string, limit int) (*ThreadHistoryResponse, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	msgs, err := s.threads.GetMessages(ctx, threadID, limit)
	if err != nil {
		return nil, err
	}
	out := &ThreadHistoryResponse{ThreadID: threadID, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, MessageResponse{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
			MessageID: m.ID,
		})
	}
	out.TotalMessages = len(out.Messages)
	return out, nil
}

// CreateThread stores a new thread. A blank id generates one.
func (s *Service) CreateThread(ctx context.Context, id string) (*Thread, error) {
	t := NewThread(id)
	existing, err := s.threads.GetThread(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.NewConflict("thread", t.ID, "thread "+t.ID+" already exists")
	}
	return s.threads.CreateThread(ctx, t)
}

// ListThreads returns every thread, most recently updated first.
func (s *Service) ListThreads(ctx context.Context) ([]*Thread, error) {
	return s.threads.ListThreads(ctx)
}

// RenameThread changes a thread's title.
func (s *Service) RenameThread(ctx context.Context, id, title string) (*Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.NewValidation("title", "title cannot be empty")
	}
	ok, err := s.threads.UpdateThreadTitle(ctx, id, title)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NewNotFound("thread", id)
	}
	return s.threads.GetThread(ctx, id)
}

// DeleteThread removes a thread with its messages and plans.
func (s *Service) DeleteThread(ctx context.Context, id string) error {
	ok, err := s.threads.DeleteThread(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewNotFound("thread", id)
	}
	s.logger.Info("thread deleted", "thread_id", id)
	return nil
}

// prepareTurn ensures the thread exists, stores the user message and loads history.
func (s *Service) prepareTurn(ctx context.Context, req *ChatRequest) ([]*Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	thread, err := s.threads.GetThread(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		if _, err := s.threads.CreateThread(ctx, NewThread(req.ThreadID)); err != nil {
			return nil, err
		}
		s.logger.Debug("thread created on first message", "thread_id", req.ThreadID)
	}

	msg, err := NewMessage(req.ThreadID, RoleHuman, req.Message)
	if err != nil {
		return nil, err
	}
	if _, err := s.threads.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	return s.threads.GetMessages(ctx, req.ThreadID, 0)
}

func (s *Service) saveReply(ctx context.Context, threadID, content string, metadata map[string]any) (*Message, error) {
	msg, err := NewMessage(threadID, RoleAI, content)
	if err != nil {
		return nil, err
	}
	msg.Metadata = metadata
	return s.threads.SaveMessage(ctx, msg)
}

func summarizeToolCalls(calls []ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.ToolName)
	}
	return "[called tools: " + strings.Join(names, ", ") + "]"
}
