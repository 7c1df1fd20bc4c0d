// Package server exposes the live book, the feed status and the impact
// simulator over HTTP and a websocket stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/engine"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/feed"
)

// Feed is the part of the orchestrator the API reads and steers.
type Feed interface {
	Book() adapter.Book
	Status() feed.Status
	Select(ctx context.Context, sel adapter.Selection) error
}

// HealthReporter reports per-selection freshness. Satisfied by
// adapter.FeedMonitor.
type HealthReporter interface {
	Health(sel adapter.Selection) adapter.Health
}

// UpdateSource hands out BookUpdate subscriptions. Satisfied by
// adapter.Broadcaster.
type UpdateSource interface {
	SubscribeAll() <-chan adapter.BookUpdate
	Unsubscribe(ch <-chan adapter.BookUpdate)
}

// Deps are the collaborators a Server needs. Health and Stream may be nil.
type Deps struct {
	Feed      Feed
	Health    HealthReporter
	Stream    UpdateSource
	Validator *engine.Validator
	History   *engine.History

	// ImbalanceDepth is the number of levels per side used for the book
	// imbalance figure. Zero means engine.DefaultImbalanceDepth.
	ImbalanceDepth int
}

// Server routes API requests to the feed and the simulator.
type Server struct {
	deps   Deps
	log    *zap.Logger
	router *mux.Router
}

// New builds a Server with all routes registered.
func New(deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = engine.NewValidator(nil)
	}
	if deps.History == nil {
		deps.History = engine.NewHistory(engine.DefaultHistorySize)
	}
	if deps.ImbalanceDepth <= 0 {
		deps.ImbalanceDepth = engine.DefaultImbalanceDepth
	}

	s := &Server{
		deps:   deps,
		log:    log.Named("server"),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/book", s.handleBook).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/depth", s.handleDepth).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/selection", s.handleSelect).Methods(http.MethodPut)
	api.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	api.HandleFunc("/simulations", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/simulations", s.handleHistory).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/book", s.handleStream).Methods(http.MethodGet)
	s.router.Use(s.logRequests)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
