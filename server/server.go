// Package server implements the HTTP API of the lifelogd daemon.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/service"
)

const (
	readHeaderTimeout = 10 * time.Second
	// maxBodyBytes bounds request bodies, which may carry base64 media.
	maxBodyBytes = 64 << 20
)

// Config holds server configuration options.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// Server is the HTTP server for lifelogd.
type Server struct {
	svc        *service.Service
	router     chi.Router
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a new HTTP server.
func New(cfg Config, svc *service.Service) *Server {
	s := &Server{
		svc:    svc,
		logger: cfg.Logger.With().Str("component", "http-server").Logger(),
	}
	s.router = s.routes(cfg.AllowedOrigins)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.listModels)
			r.Put("/{modelID}/config", s.putModelConfig)
			r.Delete("/{modelID}/config", s.deleteModelConfig)
		})

		r.Route("/memories", func(r chi.Router) {
			r.Get("/", s.listMemories)
			r.Post("/", s.createMemory)
			r.Get("/{id}", s.getMemory)
			r.Delete("/{id}", s.deleteMemory)
			r.Get("/{id}/media", s.getMedia)
			r.Post("/{id}/analysis", s.analyzeMemory)
			r.Patch("/{id}/analysis", s.editSummary)
		})

		r.Post("/ask", s.ask)
		r.Get("/exchanges", s.listExchanges)
		r.Delete("/exchanges", s.clearExchanges)
		r.Post("/graph", s.buildGraph)
	})

	return r
}

// Serve starts the server on the given listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info().Str("address", listener.Addr().String()).Msg("Starting HTTP server")
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe starts the server on the configured address.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Gracefully stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
