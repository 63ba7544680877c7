// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

// Package server exposes the chat loop over HTTP: a small relay that
// streams loop events as server-sent events. Rendering is the caller's
// concern; the relay only forwards events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/tools"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// shutdownGrace bounds graceful shutdown.
const shutdownGrace = 5 * time.Second

// Config holds server dependencies.
type Config struct {
	Listen    string
	Providers map[string]provider.Provider
	Default   string
	Registry  *tools.Registry
	MaxRounds int
}

// Server is the HTTP relay.
type Server struct {
	cfg    Config
	router chi.Router
	http   *http.Server
}

// New creates a Server with its routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		return nil, stranderr.New(stranderr.CodeServerStartFailure, "listen address is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, stranderr.New(stranderr.CodeServerStartFailure, "at least one provider is required")
	}

	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/models", s.handleModels)
	r.Post("/v1/chat/stream", s.handleChatStream)

	s.router = r
	s.http = &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.Listen)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return stranderr.Wrapf(err, stranderr.CodeServerStartFailure, "serving on %s", s.cfg.Listen)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	var models []provider.ModelInfo
	for _, p := range s.cfg.Providers {
		known, err := p.ListModels(r.Context())
		if err != nil {
			continue
		}
		models = append(models, known...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// resolveProvider picks the provider for a request, falling back to the
// configured default.
func (s *Server) resolveProvider(name string) (provider.Provider, bool) {
	if name == "" {
		name = s.cfg.Default
	}
	p, ok := s.cfg.Providers[name]
	return p, ok
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  string(stranderr.CodeOf(err)),
	})
}
