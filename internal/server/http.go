// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pocketbudget/entitlement-engine/pkg/handler"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 30 * time.Second

// HTTPServer serves the session API.
type HTTPServer struct {
	server         *http.Server
	port           int
	handler        *handler.Handler
	allowedOrigins []string
}

// NewHTTPServer creates a new HTTP API server instance.
func NewHTTPServer(port int, h *handler.Handler, allowedOrigins []string) *HTTPServer {
	return &HTTPServer{
		port:           port,
		handler:        h,
		allowedOrigins: allowedOrigins,
	}
}

// Setup builds the router with its middleware chain and registers the handlers.
func (s *HTTPServer) Setup() error {
	if s.handler == nil {
		return errors.New("http server requires a handler")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// Router returns the fully configured request router.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	s.handler.Register(r)
	return r
}

// Start begins serving HTTP requests.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("HTTP API server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP API server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down HTTP API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("HTTP API server stopped")
	return nil
}
