package server

import (
	"net/http"
	"strconv"
)

type askRequest struct {
	Query string `json:"query" validate:"max=4000"`
	Model string `json:"model"`
}

// ask answers a question from the stored memories. A blank query is
// reported as empty_input rather than a validation failure.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	answer, err := s.svc.Ask(r.Context(), req.Query, req.Model)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) listExchanges(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	exchanges, err := s.svc.Exchanges(r.Context(), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"exchanges": exchanges})
}

func (s *Server) clearExchanges(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearExchanges(r.Context()); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type graphRequest struct {
	Model string `json:"model"`
}

func (s *Server) buildGraph(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	view, err := s.svc.Graph(r.Context(), req.Model)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}
