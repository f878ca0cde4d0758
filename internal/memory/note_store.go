package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/util"
)

var _ notes.Repository = (*SQLiteStore)(nil)

const noteColumns = `n.id, n.title, n.content, n.thread_id, n.tags, n.created_at, n.updated_at`

// SaveNote stores a note and its tag rows.
func (s *SQLiteStore) SaveNote(ctx context.Context, n *notes.Note) (*notes.Note, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if n.ID == "" {
		n.ID = util.NewID(util.NotePrefix)
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	n.Tags = notes.NormalizeTags(n.Tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, thread_id, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, nullString(n.ThreadID), marshalJSON(n.Tags), formatTime(n.CreatedAt), formatTime(n.UpdatedAt)); err != nil {
		return nil, apperr.NewRepository("insert note", err)
	}
	if err := replaceTagsTx(ctx, tx, n.ID, n.Tags); err != nil {
		return nil, apperr.NewRepository("insert note tags", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.NewRepository("commit note", err)
	}
	return n, nil
}

// GetNote returns a note, or nil when absent.
func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*notes.Note, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := scanNoteRow(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewRepository("query note", err)
	}
	return n, nil
}

// UpdateNote rewrites a note and its tags.
func (s *SQLiteStore) UpdateNote(ctx context.Context, n *notes.Note) (*notes.Note, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n.UpdatedAt = time.Now().UTC()
	n.Tags = notes.NormalizeTags(n.Tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, tags = ?, updated_at = ? WHERE id = ?
	`, n.Title, n.Content, marshalJSON(n.Tags), formatTime(n.UpdatedAt), n.ID)
	if err != nil {
		return nil, apperr.NewRepository("update note", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, apperr.NewNotFound("note", n.ID)
	}
	if err := replaceTagsTx(ctx, tx, n.ID, n.Tags); err != nil {
		return nil, apperr.NewRepository("update note tags", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.NewRepository("commit note", err)
	}
	return n, nil
}

// DeleteNote removes a note; tag rows cascade.
func (s *SQLiteStore) DeleteNote(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return false, apperr.NewRepository("delete note", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SearchNotes matches query against title and content, newest first.
func (s *SQLiteStore) SearchNotes(ctx context.Context, query string, limit int) ([]*notes.Note, error) {
	pattern := likePattern(query)
	return s.queryNotes(ctx, "search notes", `
		SELECT `+noteColumns+` FROM notes n
		WHERE n.title LIKE ? ESCAPE '\' OR n.content LIKE ? ESCAPE '\'
		ORDER BY n.created_at DESC LIMIT ?
	`, pattern, pattern, limit)
}

// NotesByTag returns notes carrying tag, newest first.
func (s *SQLiteStore) NotesByTag(ctx context.Context, tag string, limit int) ([]*notes.Note, error) {
	return s.queryNotes(ctx, "notes by tag", `
		SELECT `+noteColumns+` FROM notes n
		JOIN note_tags t ON t.note_id = n.id
		WHERE t.tag = ?
		ORDER BY n.created_at DESC LIMIT ?
	`, tag, limit)
}

// NotesByThread returns the thread's notes, newest first.
func (s *SQLiteStore) NotesByThread(ctx context.Context, threadID string, limit int) ([]*notes.Note, error) {
	return s.queryNotes(ctx, "notes by thread", `
		SELECT `+noteColumns+` FROM notes n
		WHERE n.thread_id = ?
		ORDER BY n.created_at DESC LIMIT ?
	`, threadID, limit)
}

// ListNotes returns every note, oldest first.
func (s *SQLiteStore) ListNotes(ctx context.Context) ([]*notes.Note, error) {
	return s.queryNotes(ctx, "list notes", `SELECT `+noteColumns+` FROM notes n ORDER BY n.created_at ASC`)
}

func (s *SQLiteStore) queryNotes(ctx context.Context, op, query string, args ...any) ([]*notes.Note, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewRepository(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []*notes.Note{}
	for rows.Next() {
		n, err := scanNoteRow(rows)
		if err != nil {
			return nil, apperr.NewRepository(op, err)
		}
		out = append(out, n)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, apperr.NewRepository(op, err)
	}
	return out, nil
}

func replaceTagsTx(ctx context.Context, tx txExecutor, noteID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO note_tags (note_id, tag) VALUES (?, ?)`, noteID, tag); err != nil {
			return err
		}
	}
	return nil
}

func scanNoteRow(row rowScanner) (*notes.Note, error) {
	var n notes.Note
	var threadID, tags sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &threadID, &tags, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.ThreadID = threadID.String
	n.Tags = unmarshalStrings(tags)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
