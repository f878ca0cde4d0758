package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memNotes struct {
	notes    map[string]*Note
	n        int
	lastCall string
}

func newMemNotes() *memNotes { return &memNotes{notes: map[string]*Note{}} }

func (m *memNotes) SaveNote(_ context.Context, n *Note) (*Note, error) {
	m.n++
	n.ID = fmt.Sprintf("note-%08d", m.n)
	m.notes[n.ID] = n
	return n, nil
}

func (m *memNotes) GetNote(_ context.Context, id string) (*Note, error) { return m.notes[id], nil }

func (m *memNotes) UpdateNote(_ context.Context, n *Note) (*Note, error) {
	m.notes[n.ID] = n
	return n, nil
}

func (m *memNotes) DeleteNote(_ context.Context, id string) (bool, error) {
	_, ok := m.notes[id]
	delete(m.notes, id)
	return ok, nil
}

func (m *memNotes) SearchNotes(_ context.Context, q string, limit int) ([]*Note, error) {
	m.lastCall = "search:" + q
	return m.filter(limit, func(n *Note) bool { return strings.Contains(n.Content, q) || strings.Contains(n.Title, q) }), nil
}

func (m *memNotes) NotesByTag(_ context.Context, tag string, limit int) ([]*Note, error) {
	m.lastCall = "tag:" + tag
	return m.filter(limit, func(n *Note) bool {
		for _, t := range n.Tags {
			if t == tag {
				return true
			}
		}
		return false
	}), nil
}

func (m *memNotes) NotesByThread(_ context.Context, id string, limit int) ([]*Note, error) {
	m.lastCall = "thread:" + id
	return m.filter(limit, func(n *Note) bool { return n.ThreadID == id }), nil
}

func (m *memNotes) ListNotes(context.Context) ([]*Note, error) {
	return m.filter(0, func(*Note) bool { return true }), nil
}

func (m *memNotes) filter(limit int, keep func(*Note) bool) []*Note {
	out := []*Note{}
	for _, n := range m.notes {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type sliceWriter struct {
	written []string
	failOn  string
}

func (w *sliceWriter) WriteNote(n *Note) (string, error) {
	if n.ID == w.failOn {
		return "", errors.New("disk full")
	}
	w.written = append(w.written, n.ID)
	return "/notes/" + n.ID + ".md", nil
}

func TestSaveNote(t *testing.T) {
	svc := NewService(newMemNotes(), nil)

	n, err := svc.SaveNote(context.Background(), SaveNoteRequest{Title: " Flights ", Content: "Morning", Tags: []string{"Travel", " travel", ""}})
	require.NoError(t, err)
	assert.Equal(t, "Flights", n.Title)
	assert.Equal(t, []string{"travel"}, n.Tags)

	_, err = svc.SaveNote(context.Background(), SaveNoteRequest{Title: "", Content: "x"})
	assert.True(t, apperr.IsValidation(err))
	_, err = svc.SaveNote(context.Background(), SaveNoteRequest{Title: "x", Content: " "})
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateNote(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemNotes(), nil)
	n, err := svc.SaveNote(ctx, SaveNoteRequest{Title: "Flights", Content: "Morning"})
	require.NoError(t, err)

	content := "Evening"
	tags := []string{"Prefs"}
	updated, err := svc.UpdateNote(ctx, n.ID, UpdateNoteRequest{Content: &content, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Flights", updated.Title)
	assert.Equal(t, "Evening", updated.Content)
	assert.Equal(t, []string{"prefs"}, updated.Tags)

	_, err = svc.UpdateNote(ctx, n.ID, UpdateNoteRequest{})
	assert.True(t, apperr.IsValidation(err))

	blank := " "
	_, err = svc.UpdateNote(ctx, n.ID, UpdateNoteRequest{Title: &blank})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.UpdateNote(ctx, "note-ghost", UpdateNoteRequest{Content: &content})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRetrieveNotes_Priority(t *testing.T) {
	tests := []struct {
		name string
		req  RetrieveNotesRequest
		want string
	}{
		{"query wins", RetrieveNotesRequest{Query: "x", Tag: "t", ThreadID: "th"}, "search:x"},
		{"tag next", RetrieveNotesRequest{Tag: " Travel ", ThreadID: "th"}, "tag:travel"},
		{"thread last", RetrieveNotesRequest{ThreadID: "th"}, "thread:th"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemNotes()
			_, err := NewService(repo, nil).RetrieveNotes(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.lastCall)
		})
	}

	_, err := NewService(newMemNotes(), nil).RetrieveNotes(context.Background(), RetrieveNotesRequest{})
	assert.True(t, apperr.IsValidation(err))
}

func TestRetrieveNotes_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	repo := newMemNotes()
	svc := NewService(repo, nil)
	for i := 0; i < DefaultLimit+2; i++ {
		_, err := svc.SaveNote(ctx, SaveNoteRequest{Title: "n", Content: "shared", ThreadID: "t1"})
		require.NoError(t, err)
	}
	got, err := svc.RetrieveNotes(ctx, RetrieveNotesRequest{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
}

func TestDeleteNote(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemNotes(), nil)
	n, err := svc.SaveNote(ctx, SaveNoteRequest{Title: "a", Content: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, n.ID))
	assert.True(t, apperr.IsNotFound(svc.DeleteNote(ctx, n.ID)))
}

func TestExportMarkdown(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemNotes(), nil)
	a, _ := svc.SaveNote(ctx, SaveNoteRequest{Title: "a", Content: "1"})
	b, _ := svc.SaveNote(ctx, SaveNoteRequest{Title: "b", Content: "2"})

	w := &sliceWriter{}
	paths, err := svc.ExportMarkdown(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, w.written)
	assert.Len(t, paths, 2)

	failing := &sliceWriter{failOn: b.ID}
	paths, err = svc.ExportMarkdown(ctx, failing)
	require.Error(t, err)
	assert.Len(t, paths, 1)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{"B", " a", "b", ""}))
	assert.Empty(t, NormalizeTags(nil))
}
