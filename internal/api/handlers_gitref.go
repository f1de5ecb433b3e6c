package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabaini/grns/internal/engine"
)

func (s *Server) handleAddGitRef(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req engine.GitRefCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ref, err := s.eng.AddGitRef(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleListGitRefs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	refs, err := s.eng.ListGitRefs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"git_refs": refs})
}

func (s *Server) handleGetGitRef(w http.ResponseWriter, r *http.Request) {
	refID := chi.URLParam(r, "refId")
	ref, err := s.eng.GetGitRef(r.Context(), refID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleDeleteGitRef(w http.ResponseWriter, r *http.Request) {
	refID := chi.URLParam(r, "refId")
	if err := s.eng.DeleteGitRef(r.Context(), refID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
