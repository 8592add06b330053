package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avrellis/tunegate/internal/notes"
)

// noteRequest is the JSON body accepted by the create and update handlers.
type noteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (n *noteRequest) validate() error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Body) == "" {
		return errors.New("note must have a title or a body")
	}
	return nil
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := s.notes.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list notes", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, list, http.StatusOK)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	note, err := s.notes.Get(ctx, id)
	if errors.Is(err, notes.ErrNotFound) {
		writeJSONError(ctx, w, "note not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load note", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, note, http.StatusOK)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := s.notes.Create(ctx, req.Title, req.Body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create note", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, note, http.StatusCreated)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := s.notes.Update(ctx, id, req.Title, req.Body)
	if errors.Is(err, notes.ErrNotFound) {
		writeJSONError(ctx, w, "note not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to update note", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, note, http.StatusOK)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := s.notes.Delete(ctx, id)
	if errors.Is(err, notes.ErrNotFound) {
		writeJSONError(ctx, w, "note not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete note", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
