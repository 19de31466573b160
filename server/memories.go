package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const defaultListLimit = 200

type createMemoryRequest struct {
	Content     string     `json:"content" validate:"max=20000"`
	MediaType   string     `json:"media_type" validate:"omitempty,oneof=TEXT IMAGE AUDIO VIDEO text image audio video"`
	MediaMIME   string     `json:"media_mime"`
	MediaBase64 string     `json:"media_base64"`
	Location    string     `json:"location" validate:"max=200"`
	CreatedAt   *time.Time `json:"created_at"`
}

// decodeMedia accepts raw base64 or a data URL. A data URL's MIME type is
// used when mimeType is empty.
func decodeMedia(payload, mimeType string) (*memory.Media, error) {
	if payload == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data URL")
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(header, ";")
		}
		payload = data
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New("media_base64 is not valid base64")
	}
	return &memory.Media{MIMEType: mimeType, Data: raw}, nil
}

func (s *Server) createMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	mediaType, err := memory.ParseMediaType(req.MediaType)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	media, err := decodeMedia(req.MediaBase64, req.MediaMIME)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	m := memory.Memory{
		Content:   req.Content,
		MediaType: mediaType,
		Media:     media,
		Location:  req.Location,
	}
	if req.CreatedAt != nil {
		m.CreatedAt = *req.CreatedAt
	}
	if media == nil && !m.HasText() {
		s.respondErr(w, r, engine.ErrEmptyInput)
		return
	}

	saved, err := s.svc.AddMemory(r.Context(), m)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	saved.Media = stripBytes(saved.Media)
	s.respondJSON(w, http.StatusCreated, saved)
}

func stripBytes(m *memory.Media) *memory.Media {
	if m == nil {
		return nil
	}
	return &memory.Media{MIMEType: m.MIMEType}
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	mems, err := s.svc.ListMemories(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if mems == nil {
		mems = []memory.Memory{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"memories": mems})
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.GetMemory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	m.Media = stripBytes(m.Media)
	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteMemory(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getMedia streams the media payload. The handle is released on every path.
func (s *Server) getMedia(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.OpenMedia(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	defer h.Close()

	w.Header().Set("Content-Type", h.MIMEType)
	if h.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(h.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, h); err != nil {
		s.logger.Warn().Err(err).Str("requestID", requestIDFrom(r.Context())).Msg("media stream interrupted")
	}
}

type analyzeRequest struct {
	Model  string `json:"model"`
	Locale string `json:"locale" validate:"omitempty,max=16"`
}

func (s *Server) analyzeMemory(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	loc, err := s.svc.Locale(req.Locale)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	analysis, err := s.svc.AnalyzeMemory(r.Context(), chi.URLParam(r, "id"), req.Model, loc)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, analysis)
}

type editSummaryRequest struct {
	Summary string `json:"summary" validate:"required,max=2000"`
}

func (s *Server) editSummary(w http.ResponseWriter, r *http.Request) {
	var req editSummaryRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	analysis, err := s.svc.EditSummary(r.Context(), chi.URLParam(r, "id"), req.Summary)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, analysis)
}
