package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/conversation"
)

var _ conversation.ThreadRepository = (*SQLiteStore)(nil)

// CreateThread stores a new thread. A duplicate id is a ConflictError.
func (s *SQLiteStore) CreateThread(ctx context.Context, t *conversation.Thread) (*conversation.Thread, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = conversation.NewThreadID()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Title == "" {
		t.Title = conversation.DefaultThreadTitle
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.Title, marshalJSON(t.Metadata), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict("thread", t.ID, "thread "+t.ID+" already exists")
		}
		return nil, apperr.NewRepository("insert thread", err)
	}
	return t, nil
}

// GetThread returns a thread, or nil when absent.
func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*conversation.Thread, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	t, err := scanThreadRow(s.db.QueryRowContext(ctx, `
		SELECT id, title, metadata, created_at, updated_at FROM threads WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewRepository("query thread", err)
	}
	return t, nil
}

// ListThreads returns every thread, most recently updated first.
func (s *SQLiteStore) ListThreads(ctx context.Context) ([]*conversation.Thread, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, metadata, created_at, updated_at FROM threads
		ORDER BY updated_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, apperr.NewRepository("query threads", err)
	}
	defer func() { _ = rows.Close() }()

	threads := []*conversation.Thread{}
	for rows.Next() {
		t, err := scanThreadRow(rows)
		if err != nil {
			return nil, apperr.NewRepository("scan thread", err)
		}
		threads = append(threads, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, apperr.NewRepository("list threads", err)
	}
	return threads, nil
}

// UpdateThreadTitle renames a thread. It returns false when the thread is absent.
func (s *SQLiteStore) UpdateThreadTitle(ctx context.Context, id, title string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE threads SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now()), id)
	if err != nil {
		return false, apperr.NewRepository("update thread", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteThread removes a thread, its messages (cascade) and its plans in one transaction.
func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return false, apperr.NewRepository("delete thread", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE thread_id = ?`, id); err != nil {
		return false, apperr.NewRepository("delete thread plans", err)
	}
	if err := tx.Commit(); err != nil {
		return false, apperr.NewRepository("commit delete thread", err)
	}
	return true, nil
}

// SaveMessage appends a message and bumps the thread's updated_at.
func (s *SQLiteStore) SaveMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metadata any
	if len(m.Metadata) > 0 {
		metadata = marshalJSON(m.Metadata)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (thread_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ThreadID, m.Role, m.Content, metadata, formatTime(m.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperr.NewNotFound("thread", m.ThreadID)
		}
		return nil, apperr.NewRepository("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.NewRepository("insert message", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`, formatTime(m.CreatedAt), m.ThreadID); err != nil {
		return nil, apperr.NewRepository("touch thread", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.NewRepository("commit message", err)
	}

	m.ID = id
	return m, nil
}

// GetMessages returns messages oldest first; limit > 0 keeps the most recent ones.
func (s *SQLiteStore) GetMessages(ctx context.Context, threadID string, limit int) ([]*conversation.Message, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT id, thread_id, role, content, metadata, created_at FROM messages WHERE thread_id = ? ORDER BY id ASC`
	args := []any{threadID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT id, thread_id, role, content, metadata, created_at FROM messages
			WHERE thread_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewRepository("query messages", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []*conversation.Message{}
	for rows.Next() {
		var m conversation.Message
		var metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &metadata, &createdAt); err != nil {
			return nil, apperr.NewRepository("scan message", err)
		}
		if metadata.Valid {
			m.Metadata = unmarshalMap(metadata)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, apperr.NewRepository("list messages", err)
	}
	return msgs, nil
}

func scanThreadRow(row rowScanner) (*conversation.Thread, error) {
	var t conversation.Thread
	var metadata sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Title, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Metadata = unmarshalMap(metadata)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
