package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/josephgoksu/deepagent/internal/conversation"
	"github.com/josephgoksu/deepagent/internal/planning"
)

// DefaultSystemPrompt is used when neither the request nor the config supplies one.
const DefaultSystemPrompt = `You are a Deep Agent, an assistant that solves complex, multi-step problems.

## Planning
- For any task that needs three or more steps, call create_plan first.
- Work through the steps in order and call update_plan_step as each one is finished.
- Use add_plan_step when you discover extra work, and view_plan to check progress.
- A conversation has at most one active plan.

## Memory
- Use save_note for facts the user will want remembered later.
- Use search_notes before asking the user for something they may have told you already.

Be concise. Explain what you did after using tools.`

var _ conversation.AgentService = (*Agent)(nil)

// Agent runs one conversation turn as a ReAct loop:
// LLM -> (tool call -> tool result -> LLM)* -> final answer.
type Agent struct {
	llmConfig    Config
	plans        *planning.Service
	tools        []tool.InvokableTool
	maxIters     int
	systemPrompt string
	logger       *slog.Logger
	modelFactory ChatModelFactory
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxIterations sets the maximum number of tool-use rounds per turn.
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 && n <= 50 {
			a.maxIters = n
		}
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(p string) AgentOption {
	return func(a *Agent) {
		if strings.TrimSpace(p) != "" {
			a.systemPrompt = p
		}
	}
}

// WithAgentLogger sets the logger.
func WithAgentLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithModelFactory replaces NewChatModel.
func WithModelFactory(f ChatModelFactory) AgentOption {
	return func(a *Agent) {
		if f != nil {
			a.modelFactory = f
		}
	}
}

// NewAgent creates an agent. plans may be nil, in which case no plan context is injected.
func NewAgent(cfg Config, plans *planning.Service, tools []tool.InvokableTool, opts ...AgentOption) *Agent {
	a := &Agent{
		llmConfig:    cfg.WithDefaults(),
		plans:        plans,
		tools:        tools,
		maxIters:     DefaultMaxIterations,
		systemPrompt: DefaultSystemPrompt,
		logger:       slog.Default(),
		modelFactory: NewChatModel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// turn holds what one request needs across iterations.
type turn struct {
	chatModel model.BaseChatModel
	toolsNode *compose.ToolsNode
	toolInfos []*schema.ToolInfo
	messages  []*schema.Message
	calls     []conversation.ToolCall
}

func (a *Agent) startTurn(ctx context.Context, req conversation.AgentRequest) (*turn, error) {
	chatModel, err := a.modelFactory(ctx, a.llmConfig)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	t := &turn{chatModel: chatModel}
	if len(a.tools) > 0 {
		baseTools := make([]tool.BaseTool, len(a.tools))
		for i, tl := range a.tools {
			baseTools[i] = tl
		}
		t.toolsNode, err = compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: baseTools})
		if err != nil {
			return nil, fmt.Errorf("create tools node: %w", err)
		}
		for _, tl := range a.tools {
			info, err := tl.Info(ctx)
			if err != nil {
				continue
			}
			t.toolInfos = append(t.toolInfos, info)
		}
	}

	t.messages, err = a.buildMessages(ctx, req)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (a *Agent) generateOptions(t *turn) []model.Option {
	if len(t.toolInfos) == 0 {
		return nil
	}
	return []model.Option{model.WithTools(t.toolInfos)}
}

// Invoke runs the tool loop to a final answer.
func (a *Agent) Invoke(ctx context.Context, req conversation.AgentRequest) (*conversation.AgentResponse, error) {
	ctx = WithThreadID(ctx, req.ThreadID)
	start := time.Now()

	t, err := a.startTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	var final string
	iters := 0
	for iter := 0; iter < a.maxIters; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		iters = iter + 1

		resp, err := t.chatModel.Generate(ctx, t.messages, a.generateOptions(t)...)
		if err != nil {
			return nil, fmt.Errorf("generate (iter %d): %w", iter+1, err)
		}
		t.messages = append(t.messages, resp)

		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			break
		}
		a.runTools(ctx, t, resp)
	}

	if final == "" {
		a.logger.Warn("agent reached max iterations without a final answer",
			"thread_id", req.ThreadID, "max_iterations", a.maxIters)
		if last := t.messages[len(t.messages)-1]; last.Role == schema.Assistant {
			final = last.Content
		}
	}

	return &conversation.AgentResponse{
		Content:   final,
		ToolCalls: t.calls,
		Metadata: map[string]any{
			"provider":    string(a.llmConfig.Provider),
			"model":       a.llmConfig.Model,
			"iterations":  iters,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	}, nil
}

// Stream runs the same loop with streamed model output. Text chunks of every
// round are forwarded to sink; tool rounds continue until the model answers.
func (a *Agent) Stream(ctx context.Context, req conversation.AgentRequest, sink func(chunk string) error) error {
	ctx = WithThreadID(ctx, req.ThreadID)

	t, err := a.startTurn(ctx, req)
	if err != nil {
		return err
	}

	for iter := 0; iter < a.maxIters; iter++ {
		stream, err := t.chatModel.Stream(ctx, t.messages, a.generateOptions(t)...)
		if err != nil {
			return fmt.Errorf("stream (iter %d): %w", iter+1, err)
		}

		var chunks []*schema.Message
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				stream.Close()
				return fmt.Errorf("recv stream: %w", err)
			}
			chunks = append(chunks, chunk)
			if chunk.Content != "" {
				if err := sink(chunk.Content); err != nil {
					stream.Close()
					return err
				}
			}
		}
		stream.Close()

		if len(chunks) == 0 {
			return nil
		}
		resp, err := schema.ConcatMessages(chunks)
		if err != nil {
			return fmt.Errorf("concat stream: %w", err)
		}
		t.messages = append(t.messages, resp)
		if len(resp.ToolCalls) == 0 {
			return nil
		}
		a.runTools(ctx, t, resp)
	}

	a.logger.Warn("agent stream reached max iterations", "thread_id", req.ThreadID, "max_iterations", a.maxIters)
	return nil
}

func (a *Agent) runTools(ctx context.Context, t *turn, resp *schema.Message) {
	for _, tc := range resp.ToolCalls {
		a.logger.Debug("tool call", "tool", tc.Function.Name, "args", truncate(tc.Function.Arguments, 120))
		t.calls = append(t.calls, toToolCall(tc))
	}

	if t.toolsNode == nil {
		for _, tc := range resp.ToolCalls {
			t.messages = append(t.messages, schema.ToolMessage("Error: no tools are available", tc.ID))
		}
		return
	}

	toolResults, err := t.toolsNode.Invoke(ctx, resp)
	if err != nil {
		// Tool failures go back to the model instead of ending the turn.
		a.logger.Warn("tool execution failed", "error", err)
		toolResults = make([]*schema.Message, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			toolResults = append(toolResults, schema.ToolMessage(fmt.Sprintf("Error executing tools: %v", err), tc.ID))
		}
	}
	t.messages = append(t.messages, toolResults...)
}

// buildMessages maps thread history to eino messages behind the system prompt
// and the active plan, if any.
func (a *Agent) buildMessages(ctx context.Context, req conversation.AgentRequest) ([]*schema.Message, error) {
	prompt := a.systemPrompt
	if strings.TrimSpace(req.SystemPrompt) != "" {
		prompt = req.SystemPrompt
	}
	messages := []*schema.Message{schema.SystemMessage(prompt)}

	if a.plans != nil && req.ThreadID != "" {
		active, err := a.plans.ActivePlanFor(ctx, req.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("load active plan: %w", err)
		}
		if active != nil {
			messages = append(messages, schema.SystemMessage("Current plan for this conversation:\n"+RenderPlan(active)))
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case conversation.RoleHuman:
			messages = append(messages, schema.UserMessage(m.Content))
		case conversation.RoleAI:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		case conversation.RoleSystem:
			messages = append(messages, schema.SystemMessage(m.Content))
		default:
			// Stored tool output has no call id to pair with; skip it.
		}
	}
	return messages, nil
}

func toToolCall(tc schema.ToolCall) conversation.ToolCall {
	args := map[string]any{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"raw": tc.Function.Arguments}
		}
	}
	id := tc.ID
	if id == "" {
		id = "call-" + tc.Function.Name
	}
	return conversation.ToolCall{ToolName: tc.Function.Name, Arguments: args, CallID: id}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
