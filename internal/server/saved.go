package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deusflow/technews/internal/saved"
)

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	items := s.saved.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleAddSaved(w http.ResponseWriter, r *http.Request) {
	var item saved.Item
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	added, err := s.saved.Add(item)
	if errors.Is(err, saved.ErrEmptySlug) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if added && !s.persistSaved(w) {
		return
	}

	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"status": "success", "added": added, "count": s.saved.Len()})
}

func (s *Server) handleRemoveSaved(w http.ResponseWriter, r *http.Request) {
	if !s.saved.Remove(chi.URLParam(r, "slug")) {
		writeError(w, http.StatusNotFound, "article is not saved")
		return
	}
	if !s.persistSaved(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) persistSaved(w http.ResponseWriter) bool {
	if s.savedTo == "" {
		return true
	}
	if err := s.saved.Save(s.savedTo); err != nil {
		s.log.Error("failed to save saved articles", "path", s.savedTo, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist saved articles")
		return false
	}
	return true
}
