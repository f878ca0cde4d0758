package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/josephgoksu/deepagent/internal/conversation"
	"github.com/josephgoksu/deepagent/internal/logger"
	"github.com/josephgoksu/deepagent/internal/telemetry"
	"github.com/josephgoksu/deepagent/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsHistoryCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)

	chatCmd.Flags().String("thread", "", "continue this thread (default is a new one)")
	chatCmd.Flags().Bool("stream", false, "print the reply as it is generated")
	chatCmd.Flags().String("system", "", "override the system prompt for this turn")

	threadsHistoryCmd.Flags().Int("limit", 50, "maximum number of messages")
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the agent",
	Long: `Send one message to the agent and print the reply.

With no message and an interactive terminal, opens a chat prompt.
With no message and piped input, the whole of stdin is the message.

Examples:
  deepagent chat "Plan a three-day trip to Lisbon"
  deepagent chat --thread thread-1a2b3c4d "Mark the flight as booked"
  deepagent chat`,
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		chats, err := app.conversations()
		if err != nil {
			return err
		}
		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			threadID = conversation.NewThreadID()
		}
		system, _ := cmd.Flags().GetString("system")
		stream, _ := cmd.Flags().GetBool("stream")

		message := strings.TrimSpace(strings.Join(args, " "))
		if message == "" {
			if ui.IsInteractiveInput() && ui.IsInteractive() {
				return ui.RunChat(cmd.Context(), threadID, func(ctx context.Context, msg string) (string, error) {
					resp, err := sendTurn(ctx, app, chats, conversation.ChatRequest{Message: msg, ThreadID: threadID, SystemPrompt: system})
					if err != nil {
						return "", err
					}
					return resp.Response, nil
				})
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			message = strings.TrimSpace(string(data))
		}

		req := conversation.ChatRequest{Message: message, ThreadID: threadID, SystemPrompt: system}
		if stream && !isStructured() {
			w := cmd.OutOrStdout()
			logger.SetLastInput(message)
			err := chats.StreamChat(cmd.Context(), req, func(chunk string) error {
				_, err := io.WriteString(w, chunk)
				return err
			})
			fmt.Fprintln(w)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "thread %s\n", threadID)
			return nil
		}

		resp, err := sendTurn(cmd.Context(), app, chats, req)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), resp, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, resp.Response)
			fmt.Fprintf(os.Stderr, "thread %s\n", resp.ThreadID)
			return err
		})
	}),
}

func sendTurn(ctx context.Context, app *application, chats *conversation.Service, req conversation.ChatRequest) (*conversation.ChatResponse, error) {
	logger.SetLastInput(req.Message)
	resp, err := chats.SendMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	app.telemetry.Track(telemetry.EventChatTurn, map[string]any{"tool_calls": len(resp.ToolCalls)})
	return resp, nil
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads, most recently active first",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		chats, err := app.conversations()
		if err != nil {
			return err
		}
		threads, err := chats.ListThreads(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), threads, func(w io.Writer) error {
			if len(threads) == 0 {
				_, err := fmt.Fprintln(w, "No threads yet.")
				return err
			}
			t := &ui.Table{Headers: []string{"ID", "Title", "Updated"}, MaxWidth: 48}
			for _, th := range threads {
				t.Rows = append(t.Rows, []string{th.ID, th.Title, th.UpdatedAt.Local().Format("2006-01-02 15:04")})
			}
			_, err := fmt.Fprint(w, t.Render())
			return err
		})
	}),
}

var threadsHistoryCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Print a thread's messages",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		chats, err := app.conversations()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		history, err := chats.GetThreadHistory(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), history, func(w io.Writer) error {
			for _, m := range history.Messages {
				fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.Role, m.Content)
			}
			return nil
		})
	}),
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename <thread-id> <title>",
	Short: "Rename a thread",
	Args:  cobra.ExactArgs(2),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		chats, err := app.conversations()
		if err != nil {
			return err
		}
		th, err := chats.RenameThread(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), th, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Renamed %s to %q\n", th.ID, th.Title)
			return err
		})
	}),
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a thread with its messages and plans",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		chats, err := app.conversations()
		if err != nil {
			return err
		}
		if err := chats.DeleteThread(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !isStructured() {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %s\n", args[0])
		}
		return nil
	}),
}
