package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/engine"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/feed"
)

type errorResponse struct {
	Error string `json:"error"`
}

type metricsResponse struct {
	engine.BookMetrics
	ImbalancePercent decimal.Decimal `json:"imbalancePercent"`
	Version          uint64          `json:"version"`
}

type statusResponse struct {
	Feed   feed.Status     `json:"feed"`
	Health *adapter.Health `json:"health,omitempty"`
}

type selectionRequest struct {
	Venue  string `json:"venue"`
	Symbol string `json:"symbol"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	depth, err := intParam(r, "depth")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Feed.Book().Top(depth))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	book := s.deps.Feed.Book()
	s.writeJSON(w, http.StatusOK, metricsResponse{
		BookMetrics:      engine.Metrics(book),
		ImbalancePercent: engine.Imbalance(book, s.deps.ImbalanceDepth),
		Version:          book.Version,
	})
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	levels, err := intParam(r, "levels")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, engine.DepthCurve(s.deps.Feed.Book(), levels))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Feed: s.deps.Feed.Status()}
	if s.deps.Health != nil {
		h := s.deps.Health.Health(resp.Feed.Selection)
		resp.Health = &h
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode selection: %w", err))
		return
	}
	venue, err := adapter.ParseVenue(req.Venue)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	sel := adapter.Selection{Venue: venue, Symbol: req.Symbol}
	if err := s.deps.Feed.Select(r.Context(), sel); err != nil {
		switch {
		case errors.Is(err, feed.ErrUnknownVenue):
			s.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, feed.ErrClosed):
			s.writeError(w, http.StatusServiceUnavailable, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	s.log.Info("selection changed", zap.String("venue", string(venue)), zap.String("symbol", req.Symbol))
	s.writeJSON(w, http.StatusOK, s.deps.Feed.Status())
}

// handleSimulate previews an order against the live book. Nothing is
// validated or recorded; degenerate orders simply yield a zero result.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	order, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}
	res := engine.SimulateDepth(s.deps.Feed.Book(), order, s.deps.ImbalanceDepth)
	s.writeJSON(w, http.StatusOK, res)
}

// handleConfirm validates an order, simulates it and records the outcome.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	order, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}

	book := s.deps.Feed.Book()
	if err := s.deps.Validator.Validate(book.Selection(), order); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrBookStale) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}

	res := engine.SimulateDepth(book, order, s.deps.ImbalanceDepth)
	rec := s.deps.History.Add(book, order, res)
	s.log.Info("simulation recorded",
		zap.String("id", rec.ID),
		zap.Stringer("selection", rec.Selection),
		zap.Stringer("side", order.Side),
		zap.String("quantity", order.Quantity.String()),
	)
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.History.List(limit))
}

func (s *Server) decodeOrder(w http.ResponseWriter, r *http.Request) (engine.SimulatedOrder, bool) {
	var order engine.SimulatedOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode order: %w", err))
		return order, false
	}
	return order, true
}

// intParam reads a non-negative integer query parameter. Absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
