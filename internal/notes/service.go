package notes

import (
	"context"
	"log/slog"
	"strings"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// SaveNoteRequest is the input of SaveNote.
type SaveNoteRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	ThreadID string   `json:"thread_id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// UpdateNoteRequest changes any subset of a note's fields. Nil means unchanged.
type UpdateNoteRequest struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// IsEmpty reports whether no field is set.
func (r UpdateNoteRequest) IsEmpty() bool {
	return r.Title == nil && r.Content == nil && r.Tags == nil
}

// RetrieveNotesRequest selects notes by query, tag or thread, in that priority.
type RetrieveNotesRequest struct {
	Query    string `json:"query,omitempty"`
	Tag      string `json:"tag,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Service runs the notes use cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService returns a Service. A nil logger uses slog.Default().
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// SaveNote validates and stores a note.
func (s *Service) SaveNote(ctx context.Context, req SaveNoteRequest) (*Note, error) {
	n, err := NewNote(req.Title, req.Content, req.ThreadID, req.Tags)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.SaveNote(ctx, n)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note saved", "note_id", saved.ID, "tags", saved.Tags)
	return saved, nil
}

// UpdateNote applies req to an existing note.
func (s *Service) UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (*Note, error) {
	if req.IsEmpty() {
		return nil, apperr.NewValidation("", "at least one field (title, content, tags) must be provided")
	}
	n, err := s.repo.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.NewNotFound("note", id)
	}

	if req.Title != nil {
		n.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		n.Content = strings.TrimSpace(*req.Content)
	}
	if req.Tags != nil {
		n.Tags = NormalizeTags(*req.Tags)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpdateNote(ctx, n)
}

// RetrieveNotes searches when a query is given, else filters by tag, else by thread.
func (s *Service) RetrieveNotes(ctx context.Context, req RetrieveNotesRequest) ([]*Note, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	switch {
	case strings.TrimSpace(req.Query) != "":
		return s.repo.SearchNotes(ctx, strings.TrimSpace(req.Query), limit)
	case strings.TrimSpace(req.Tag) != "":
		return s.repo.NotesByTag(ctx, strings.ToLower(strings.TrimSpace(req.Tag)), limit)
	case strings.TrimSpace(req.ThreadID) != "":
		return s.repo.NotesByThread(ctx, strings.TrimSpace(req.ThreadID), limit)
	default:
		return nil, apperr.NewValidation("", "one of query, tag or thread_id is required")
	}
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteNote(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewNotFound("note", id)
	}
	return nil
}

// ExportMarkdown writes every note through w and returns the written locations.
func (s *Service) ExportMarkdown(ctx context.Context, w Writer) ([]string, error) {
	all, err := s.repo.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(all))
	for _, n := range all {
		p, err := w.WriteNote(n)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	s.logger.Info("notes exported", "count", len(paths))
	return paths, nil
}
