// Package server wires the storage engine, query planner and text searcher
// into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/api"
	"github.com/adfharrison1/idxdb/pkg/config"
	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/middleware"
	"github.com/adfharrison1/idxdb/pkg/planner"
	"github.com/adfharrison1/idxdb/pkg/search"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

// Server holds references to storage, router, etc.
type Server struct {
	cfg      config.ServerConfig
	router   *mux.Router
	dbEngine *storage.StorageEngine
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger shared by the server and its handlers.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables request metrics and the scrape endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new instance of Server.
func NewServer(cfg *config.Config, engine *storage.StorageEngine, options ...Option) *Server {
	s := &Server{
		cfg:      cfg.Server,
		router:   mux.NewRouter(),
		dbEngine: engine,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}

	queries := planner.New(engine, planner.WithLogger(s.logger), planner.WithMetrics(s.metrics))
	searcher := search.New(engine, search.WithLogger(s.logger), search.WithMetrics(s.metrics))
	handler := api.NewHandler(engine, queries, searcher, api.WithLogger(s.logger), api.WithStats(engine))
	handler.RegisterRoutes(s.router)

	if s.metrics != nil && cfg.Metrics.Enabled {
		s.router.Handle(cfg.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.Use(
		middleware.Logging(s.logger.Named("http")),
		middleware.Metrics(s.metrics),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("no route found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		api.WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path))
	})

	return s
}

// InitDB loads the snapshot file, if one exists, into the engine.
func (s *Server) InitDB(ctx context.Context, filename string) error {
	if err := s.dbEngine.LoadFromFile(ctx, filename); err != nil {
		return fmt.Errorf("loading %s: %w", filename, err)
	}
	return nil
}

// SaveDB saves the current database state to file.
func (s *Server) SaveDB(filename string) error {
	if err := s.dbEngine.SaveToFile(filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	return nil
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP on the configured port until ctx is done, then shuts down
// gracefully within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
