package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leocder07/tavily-stock-research-sub002/internal/api"
	"github.com/leocder07/tavily-stock-research-sub002/internal/version"
)

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.logger.Warn("response encode failed", "err", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}

// backendError maps a REST client failure onto our own status: backend
// 4xx pass through, everything else is a bad gateway.
func (s *Server) backendError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		s.respondError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	s.respondError(w, http.StatusBadGateway, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := s.core.Metrics()

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case rep.Health < 50:
		status = "failed"
		httpStatus = http.StatusServiceUnavailable
	case rep.Health < 80:
		status = "degraded"
	}

	s.respond(w, httpStatus, map[string]any{
		"status":  status,
		"health":  rep.Health,
		"version": version.Version,
		"stream":  s.core.StreamState(),
		"router":  s.core.RouterStats(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.core.Metrics())
}

func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	snap := s.core.MarketSnapshot()
	s.respond(w, http.StatusOK, map[string]any{
		"indices": snap.Indices,
		"sectors": snap.Sectors,
	})
}

func (s *Server) handleMarketQuotes(w http.ResponseWriter, r *http.Request) {
	snap := s.core.MarketSnapshot()
	s.respond(w, http.StatusOK, map[string]any{
		"quotes":   snap.Quotes,
		"selected": snap.Selected,
	})
}

func (s *Server) handleMarketNews(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"news": s.core.MarketSnapshot().News,
	})
}

func (s *Server) handleMarketSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !s.core.SelectSymbol(req.Symbol) {
		s.respondError(w, http.StatusNotFound, "symbol not in quote set")
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"selected": req.Symbol})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("q")
	if symbol == "" {
		s.respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	q, err := s.core.SearchQuote(r.Context(), symbol)
	if err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"quote": q})
}

func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"searches": s.core.RecentSearches(),
	})
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"portfolios": s.core.Portfolios(),
	})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	pf, ok := s.core.Portfolio(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"portfolio": pf})
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req api.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	pf, err := s.core.CreatePortfolio(r.Context(), req)
	if err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]any{"portfolio": pf})
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req api.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pf, err := s.core.UpdatePortfolio(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"portfolio": pf})
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeletePortfolio(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"watchlist": s.core.Watchlist(),
	})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	item, err := s.core.AddWatchlistSymbol(r.Context(), req.Symbol)
	if err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]any{"item": item})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.core.RemoveWatchlistSymbol(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Depth  string `json:"depth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	job, err := s.core.StartAnalysis(r.Context(), req.Symbol, req.Depth)
	if err != nil {
		s.backendError(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, map[string]any{"job": job})
}

func (s *Server) handleAnalysisJobs(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"jobs": s.core.AnalysisJobs(),
	})
}

func (s *Server) handleAnalysisJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.core.AnalysisJob(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"signals": s.core.Signals(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"alerts": s.core.Alerts(),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"notifications": s.core.Notifications(),
		"unread":        s.core.UnreadCount(),
	})
}

func (s *Server) handleNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"` // Empty marks everything read
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		s.core.MarkAllNotificationsRead()
		s.respond(w, http.StatusOK, map[string]int{"unread": 0})
		return
	}
	if !s.core.MarkNotificationRead(req.ID) {
		s.respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]int{"unread": s.core.UnreadCount()})
}

func (s *Server) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	state, err := s.onboarding.Load()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, state)
}

func (s *Server) handlePutOnboarding(w http.ResponseWriter, r *http.Request) {
	var state OnboardingState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.onboarding.Save(state); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, state)
}
