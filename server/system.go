package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/aschepis/backscratcher/lifelog/llm"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status returns daemon status and version information.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Status(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.svc.Models(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"models": models})
}

type modelConfigRequest struct {
	APIKey  string `json:"api_key" validate:"required"`
	BaseURL string `json:"base_url" validate:"omitempty,url"`
}

// putModelConfig stores the caller's key for a model. The key is never
// echoed back.
func (s *Server) putModelConfig(w http.ResponseWriter, r *http.Request) {
	var req modelConfigRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	modelID, err := modelIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := s.svc.SetModelConfig(r.Context(), llm.UserModelConfig{
		ModelID: modelID,
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
	}); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteModelConfig(w http.ResponseWriter, r *http.Request) {
	modelID, err := modelIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteModelConfig(r.Context(), modelID); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// modelIDParam returns the decoded {modelID} segment. chi matches on the
// escaped path whenever one is present, so ids like "meta-llama/llama-3"
// arrive still encoded.
func modelIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "modelID")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid model id %q: %w", raw, err)
	}
	return id, nil
}
