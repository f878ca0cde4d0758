package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/josephgoksu/deepagent/internal/memory"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesAddCmd)
	notesCmd.AddCommand(notesSearchCmd)
	notesCmd.AddCommand(notesDeleteCmd)
	notesCmd.AddCommand(notesExportCmd)

	notesAddCmd.Flags().String("title", "", "note title (required)")
	notesAddCmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	notesAddCmd.Flags().String("thread", "", "thread the note came from")
	_ = notesAddCmd.MarkFlagRequired("title")

	notesSearchCmd.Flags().String("tag", "", "only notes with this tag")
	notesSearchCmd.Flags().String("thread", "", "only notes from this thread")
	notesSearchCmd.Flags().Int("limit", notes.DefaultLimit, "maximum number of notes")

	notesExportCmd.Flags().String("dir", "", "export directory (default is the data dir)")
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage long-term notes",
	Long: `Notes are facts the agent (or you) saved for later conversations.

Examples:
  deepagent notes add --title "Passport" --tags travel "Expires in March"
  deepagent notes search passport
  deepagent notes search --tag travel
  deepagent notes export --dir ./notes-backup`,
}

var notesAddCmd = &cobra.Command{
	Use:   "add --title TITLE <content>",
	Short: "Save a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		threadID, _ := cmd.Flags().GetString("thread")
		n, err := app.notes.SaveNote(cmd.Context(), notes.SaveNoteRequest{
			Title:    title,
			Content:  strings.Join(args, " "),
			ThreadID: threadID,
			Tags:     tags,
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), n, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Saved note %s: %s\n", n.ID, n.Title)
			return err
		})
	}),
}

var notesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find notes by text, tag or thread",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		threadID, _ := cmd.Flags().GetString("thread")
		limit, _ := cmd.Flags().GetInt("limit")
		found, err := app.notes.RetrieveNotes(cmd.Context(), notes.RetrieveNotesRequest{
			Query:    strings.Join(args, " "),
			Tag:      tag,
			ThreadID: threadID,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), found, func(w io.Writer) error {
			if len(found) == 0 {
				_, err := fmt.Fprintln(w, "No notes found.")
				return err
			}
			if styled() {
				t := &ui.Table{Headers: []string{"ID", "Title", "Tags", "Content"}, MaxWidth: 48}
				for _, n := range found {
					t.Rows = append(t.Rows, []string{n.ID, n.Title, strings.Join(n.Tags, ","), n.Content})
				}
				_, err := fmt.Fprint(w, t.Render())
				return err
			}
			for _, n := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.Title, ui.Truncate(n.Content, 80))
			}
			return nil
		})
	}),
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		if err := app.notes.DeleteNote(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !isStructured() {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
		}
		return nil
	}),
}

var notesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every note as a Markdown file",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = app.cfg.Storage.DataDir
		}
		paths, err := app.notes.ExportMarkdown(cmd.Context(), memory.NewMarkdownStore(afero.NewOsFs(), dir))
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]any{"count": len(paths), "files": paths}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Exported %d note(s) to %s\n", len(paths), filepath.Join(dir, "notes"))
			return err
		})
	}),
}
