package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

// Error codes returned in the response envelope.
const (
	codeMissingCredential = "missing_credential"
	codeEmptyInput        = "empty_input"
	codeCouldNotComplete  = "could_not_complete"
	codeRateLimited       = "rate_limited"
	codeRequestTooLarge   = "request_too_large"
	codeNotFound          = "not_found"
	codeNoAnalysis        = "no_analysis"
	codeBadRequest        = "bad_request"
	codeInternal          = "internal"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondErr maps a domain error onto a status code and envelope.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		s.respondError(w, http.StatusBadRequest, codeMissingCredential, err.Error())
	case errors.Is(err, engine.ErrEmptyInput):
		s.respondError(w, http.StatusBadRequest, codeEmptyInput, "memory or query has no content")
	case llm.IsRateLimitError(err):
		if after := llm.ExtractRetryAfter(err); after != nil && *after > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(after.Seconds()))))
		}
		s.respondError(w, http.StatusTooManyRequests, codeRateLimited, "could not complete the request: "+err.Error())
	case llm.IsRequestTooLargeError(err):
		s.respondError(w, http.StatusRequestEntityTooLarge, codeRequestTooLarge, "could not complete the request: "+err.Error())
	case engine.IsTransportFailure(err):
		s.respondError(w, http.StatusBadGateway, codeCouldNotComplete, "could not complete the request: "+err.Error())
	case errors.Is(err, memory.ErrNotFound):
		s.respondError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, memory.ErrInvalid):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, memory.ErrNoAnalysis):
		s.respondError(w, http.StatusConflict, codeNoAnalysis, err.Error())
	default:
		s.logger.Error().Err(err).Str("requestID", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		s.respondError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// An empty body decodes as the zero value.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
