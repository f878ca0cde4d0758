package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/josephgoksu/deepagent/internal/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing plans and notes",
	Long: `Start a Model Context Protocol (MCP) server over stdio so AI tools can
create and progress thread plans and read or write notes.

Tools:
  plan   create, view, step, add, complete, cancel or list plans of a thread
  notes  save or search long-term notes

The server will run until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		return runMCPServer(cmd.Context(), app)
	}),
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpMarkdownResponse wraps Markdown content in an MCP tool result.
func mcpMarkdownResponse(markdown string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: markdown}},
	}, nil
}

// mcpErrorResponse wraps an error in an MCP tool result with IsError=true
// so the calling model can read it and correct itself.
func mcpErrorResponse(message string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: mcp.FormatError(message)}},
		IsError: true,
	}, nil
}

func mcpToolResponse(result *mcp.ToolResult, err error) (*mcpsdk.CallToolResultFor[any], error) {
	if err != nil {
		return mcpErrorResponse(err.Error())
	}
	if result.Error != "" {
		return mcpErrorResponse(result.Error)
	}
	return mcpMarkdownResponse(result.Content)
}

func newMCPServer(app *application) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    "deepagent-mcp",
		Version: version,
	}
	server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			app.log.Debug("mcp client initialized")
		},
	})

	planTool := &mcpsdk.Tool{
		Name: "plan",
		Description: `Manage the plan of a conversation thread. A thread has at most one active plan.
Use action to select the operation:
- create: new active plan (thread_id, title, steps)
- view: the thread's active plan (thread_id)
- step: mark a step done, or undone with completed=false (thread_id, step_number)
- add: append a step to the active plan (thread_id, description)
- complete: finish the active plan once every step is done (thread_id)
- cancel: abandon the active plan (thread_id)
- list: every plan of the thread, optionally filtered by status (thread_id)`,
	}
	mcpsdk.AddTool(server, planTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.PlanToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpToolResponse(mcp.HandlePlanTool(ctx, app.plans, params.Arguments))
	})

	notesTool := &mcpsdk.Tool{
		Name: "notes",
		Description: `Long-term notes shared across threads. Use action to select the operation:
- save: store a note (title, content, optional tags and thread_id)
- search: find notes by query, else by tag, else by thread_id (limit defaults to 10)`,
	}
	mcpsdk.AddTool(server, notesTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.NoteToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpToolResponse(mcp.HandleNoteTool(ctx, app.notes, params.Arguments))
	})

	return server
}

func runMCPServer(ctx context.Context, app *application) error {
	// NOTE: MCP uses stdio transport. stdout MUST be pure JSON-RPC.
	// All status/debug output goes to stderr only.
	fmt.Fprintln(os.Stderr, "deepagent MCP server starting...")

	if err := newMCPServer(app).Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
