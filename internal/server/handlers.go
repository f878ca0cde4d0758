package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/conversation"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version, Time: time.Now().UTC()})
}

// Conversations

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.chats.ListThreads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.chats.CreateThread(r.Context(), strings.TrimSpace(req.ThreadID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleRenameThread(w http.ResponseWriter, r *http.Request) {
	var req RenameThreadRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.chats.RenameThread(r.Context(), chi.URLParam(r, "thread_id"), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	if err := s.chats.DeleteThread(r.Context(), threadID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Thread deleted successfully", ThreadID: threadID})
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.chats.GetThreadHistory(r.Context(), chi.URLParam(r, "thread_id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req conversation.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.chats.SendMessage(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStreamChat writes reply chunks as text/plain. Errors after the first
// chunk can only be logged.
func (s *Server) handleStreamChat(w http.ResponseWriter, r *http.Request) {
	var req conversation.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	err := s.chats.StreamChat(r.Context(), req, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	switch {
	case err == nil && !started:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	case err != nil && !started:
		s.writeError(w, r, err)
	case err != nil:
		s.logger.Warn("chat stream aborted", "thread_id", req.ThreadID, "error", err)
	}
}

// Plans

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planning.CreatePlanRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.plans.CreatePlan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plans, err := s.plans.ListPlans(r.Context(), q.Get("thread_id"), q.Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.GetPlan(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleActivePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.GetActivePlan(r.Context(), chi.URLParam(r, "thread_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusOK, ActivePlanResponse{Message: "No active plan found"})
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	var body UpdateStepBody
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	completed := true
	if body.Completed != nil {
		completed = *body.Completed
	}
	plan, err := s.plans.UpdateStep(r.Context(), planning.UpdateStepRequest{
		PlanID:     chi.URLParam(r, "plan_id"),
		StepNumber: body.StepNumber,
		Completed:  completed,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAddStep(w http.ResponseWriter, r *http.Request) {
	var req AddStepRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.plans.AddStep(r.Context(), chi.URLParam(r, "plan_id"), req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCompletePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.CompletePlan(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.CancelPlan(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")
	if err := s.plans.DeletePlan(r.Context(), planID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Plan deleted successfully", PlanID: planID})
}

// Notes

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req notes.SaveNoteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.notes.SaveNote(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleRetrieveNotes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	found, err := s.notes.RetrieveNotes(r.Context(), notes.RetrieveNotesRequest{
		Query:    q.Get("query"),
		Tag:      q.Get("tag"),
		ThreadID: q.Get("thread_id"),
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req notes.UpdateNoteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.notes.UpdateNote(r.Context(), chi.URLParam(r, "note_id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// decodeJSON reads a JSON body into v. An empty body is accepted when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperr.NewValidation("", "invalid request body: "+err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.NewValidation(key, key+" must be a non-negative integer")
	}
	return n, nil
}
