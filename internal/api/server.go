// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"command-pipeline/internal/common/auth"
	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/validation"
	processcommand "command-pipeline/internal/workers/pipeline/process-command"
)

// MaxBodyBytes caps an inbound command payload.
const MaxBodyBytes = 64 << 10

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Pipeline      processcommand.Executor
	Validator     *validation.Validator
	Authenticator auth.Authenticator
	// Checks are pinged by /ready, keyed by name.
	Checks map[string]Pinger
}

type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	logger     logger.Logger
	router     chi.Router
	httpServer *http.Server
}

func New(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(config.GetDuration(s.cfg.RequestTimeout)))
	}

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.HeaderAPIKey},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/commands", s.handleCommand)
	})
	return r
}

func (s *Server) Router() chi.Router { return s.router }

// Start listens on cfg.Address and blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.GetDuration(s.cfg.ReadTimeout),
		WriteTimeout:      config.GetDuration(s.cfg.WriteTimeout),
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("http server listening", map[string]interface{}{"address": s.cfg.Address})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.Info("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
