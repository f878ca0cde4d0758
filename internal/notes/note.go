// Package notes is the agent's long-term memory: titled notes with tags,
// optionally tied to the thread they came from.
package notes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// DefaultLimit caps retrieval results when no limit is given.
const DefaultLimit = 10

// Note is one stored memory.
type Note struct {
	ID        string    `json:"note_id" yaml:"note_id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	ThreadID  string    `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewNote validates and returns an unsaved note.
func NewNote(title, content, threadID string, tags []string) (*Note, error) {
	now := time.Now().UTC()
	n := &Note{
		Title:     strings.TrimSpace(title),
		Content:   strings.TrimSpace(content),
		ThreadID:  strings.TrimSpace(threadID),
		Tags:      NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate requires a title and content.
func (n *Note) Validate() error {
	if n.Title == "" {
		return apperr.NewValidation("title", "note title cannot be empty")
	}
	if n.Content == "" {
		return apperr.NewValidation("content", "note content cannot be empty")
	}
	return nil
}

// NormalizeTags trims, lower-cases, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Repository persists notes. Lookups return (nil, nil) or false when nothing matches.
type Repository interface {
	SaveNote(ctx context.Context, n *Note) (*Note, error)
	GetNote(ctx context.Context, id string) (*Note, error)
	UpdateNote(ctx context.Context, n *Note) (*Note, error)
	DeleteNote(ctx context.Context, id string) (bool, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]*Note, error)
	NotesByTag(ctx context.Context, tag string, limit int) ([]*Note, error)
	NotesByThread(ctx context.Context, threadID string, limit int) ([]*Note, error)
	ListNotes(ctx context.Context) ([]*Note, error)
}

// Writer renders a note somewhere outside the database and returns its location.
type Writer interface {
	WriteNote(n *Note) (string, error)
}
