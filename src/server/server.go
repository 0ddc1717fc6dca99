// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package server exposes a [mailcheck.Engine] over HTTP and keeps the
// latest result per user and domain in a [RecordStore].
//
// Routes, all under /api/v1:
//
//	GET    /health
//	POST   /check              {"domain": "..."}
//	POST   /check/mail-echo    {"domain": "..."}
//	GET    /check/history
//	GET    /check/history/:id
//	DELETE /check/history/:id
//
// Check routes require the X-User-ID header, set by the gateway in front
// of this server after authenticating the caller.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/store"
)

const (
	defaultRequestTimeout  = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second

	// UserHeader carries the authenticated caller's ID.
	UserHeader = "X-User-ID"
)

// RecordStore persists check results. [*store.Store] satisfies it.
type RecordStore interface {
	Save(ctx context.Context, userID, domain string, result mailcheck.CheckResultData) (store.CheckRecord, error)
	ListByUser(ctx context.Context, userID string) ([]store.CheckRecord, error)
	Get(ctx context.Context, userID, id string) (store.CheckRecord, error)
	Delete(ctx context.Context, userID, id string) error
}

var _ RecordStore = (*store.Store)(nil)

// Server is the HTTP front end of the checker.
type Server struct {
	engine          mailcheck.Engine
	records         RecordStore
	logger          *slog.Logger
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	router          *gin.Engine
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger for request and error records.
// Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds the engine call of a single request.
// Default: 60s.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithShutdownTimeout bounds the graceful shutdown in [Server.Serve].
// Default: 10s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a [Server] backed by engine and records.
func New(engine mailcheck.Engine, records RecordStore, opts ...Option) *Server {
	s := &Server{
		engine:          engine,
		records:         records,
		logger:          slog.Default(),
		requestTimeout:  defaultRequestTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(requestLogger(s.logger), recovery(s.logger))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.GET("/health", s.health)

	check := v1.Group("/check", requireUser())
	{
		check.POST("", s.checkDomain)
		check.POST("/mail-echo", s.mailEcho)
		check.GET("/history", s.listHistory)
		check.GET("/history/:id", s.getHistory)
		check.DELETE("/history/:id", s.deleteHistory)
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
