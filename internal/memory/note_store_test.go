package memory

import (
	"testing"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveNote(t *testing.T, store *SQLiteStore, title, content, threadID string, tags ...string) *notes.Note {
	t.Helper()
	n, err := notes.NewNote(title, content, threadID, tags)
	require.NoError(t, err)
	saved, err := store.SaveNote(ctxT(t), n)
	require.NoError(t, err)
	return saved
}

func noteIDs(ns []*notes.Note) []string {
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestNoteStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	n := saveNote(t, store, "Flights", "Prefer morning departures", "t1", "Travel", "travel", "prefs")

	assert.Regexp(t, `^note-[0-9a-f]{8}$`, n.ID)
	got, err := store.GetNote(ctxT(t), n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Flights", got.Title)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, []string{"prefs", "travel"}, got.Tags)

	missing, err := store.GetNote(ctxT(t), "note-none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNoteStore_Retrieval(t *testing.T) {
	store := setupTestStore(t)
	ctx := ctxT(t)

	a := saveNote(t, store, "Flights", "Prefer morning departures", "t1", "travel")
	b := saveNote(t, store, "Hotels", "Near the station, 100% walkable", "t2", "travel", "lodging")
	c := saveNote(t, store, "Diet", "No peanuts", "t1", "health")

	found, err := store.SearchNotes(ctx, "morning", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, noteIDs(found))

	found, err = store.SearchNotes(ctx, "100%", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, noteIDs(found), "percent is matched literally")

	tagged, err := store.NotesByTag(ctx, "travel", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, noteIDs(tagged))

	limited, err := store.NotesByTag(ctx, "travel", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	byThread, err := store.NotesByThread(ctx, "t1", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, noteIDs(byThread))

	all, err := store.ListNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNoteStore_UpdateReplacesTags(t *testing.T) {
	store := setupTestStore(t)
	ctx := ctxT(t)

	n := saveNote(t, store, "Flights", "Morning", "", "travel")
	n.Content = "Evening"
	n.Tags = []string{"prefs"}
	_, err := store.UpdateNote(ctx, n)
	require.NoError(t, err)

	tagged, err := store.NotesByTag(ctx, "travel", 10)
	require.NoError(t, err)
	assert.Empty(t, tagged)

	got, err := store.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening", got.Content)
	assert.Equal(t, []string{"prefs"}, got.Tags)

	ghost := &notes.Note{ID: "note-ghost", Title: "x", Content: "y"}
	_, err = store.UpdateNote(ctx, ghost)
	assert.True(t, apperr.IsNotFound(err))
}

func TestNoteStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := ctxT(t)

	n := saveNote(t, store, "Flights", "Morning", "", "travel")
	ok, err := store.DeleteNote(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var tagRows int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM note_tags WHERE note_id = ?`, n.ID).Scan(&tagRows))
	assert.Zero(t, tagRows)

	ok, err = store.DeleteNote(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
