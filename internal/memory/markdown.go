package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/spf13/afero"
)

var _ notes.Writer = (*MarkdownStore)(nil)

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9-]+`)

// MarkdownStore writes human-readable copies of notes.
type MarkdownStore struct {
	fs       afero.Fs
	basePath string
}

// NewMarkdownStore writes under basePath on fs. A nil fs uses the OS filesystem.
func NewMarkdownStore(fs afero.Fs, basePath string) *MarkdownStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &MarkdownStore{fs: fs, basePath: basePath}
}

// WriteNote renders n to <base>/notes/<slug>-<id>.md and returns the path.
func (s *MarkdownStore) WriteNote(n *notes.Note) (string, error) {
	notesDir := filepath.Join(s.basePath, "notes")
	if err := s.fs.MkdirAll(notesDir, 0755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}

	filePath := filepath.Join(notesDir, noteFileName(n))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", n.Title))
	if len(n.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("- **Tags:** %s\n", strings.Join(n.Tags, ", ")))
	}
	if n.ThreadID != "" {
		sb.WriteString(fmt.Sprintf("- **Thread:** %s\n", n.ThreadID))
	}
	sb.WriteString(fmt.Sprintf("- **Date:** %s\n\n", n.CreatedAt.Format("2006-01-02")))
	sb.WriteString(n.Content)
	sb.WriteString("\n")

	if err := afero.WriteFile(s.fs, filePath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("write note %s: %w", n.ID, err)
	}
	return filePath, nil
}

// RemoveNote deletes the rendered copy of n if present.
func (s *MarkdownStore) RemoveNote(n *notes.Note) error {
	err := s.fs.Remove(filepath.Join(s.basePath, "notes", noteFileName(n)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func noteFileName(n *notes.Note) string {
	slug := unsafeFileChars.ReplaceAllString(strings.ToLower(strings.ReplaceAll(n.Title, " ", "-")), "")
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	if slug == "" {
		return n.ID + ".md"
	}
	return slug + "-" + n.ID + ".md"
}
