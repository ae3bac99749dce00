package stub

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/leocder07/tavily-stock-research-sub002/internal/api"
	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
	"github.com/leocder07/tavily-stock-research-sub002/internal/state"
)

// Config holds stub backend settings.
type Config struct {
	Addr            string        // Listen address
	TickInterval    time.Duration // Quote walk cadence
	JobStepInterval time.Duration // Analysis job advance cadence
	Seed            uint64        // Random walk seed, 0 means time-based
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9090",
		TickInterval:    2 * time.Second,
		JobStepInterval: 1500 * time.Millisecond,
	}
}

// Server is the synthetic backend.
type Server struct {
	cfg    Config
	logger *slog.Logger
	rng    *rand.Rand
	hub    *hub
	mux    chi.Router

	httpServer *http.Server

	mu         sync.Mutex
	quotes     map[string]model.Quote
	indices    []model.MarketIndex
	sectors    []model.SectorPerformance
	news       []model.NewsItem
	portfolios map[string]model.Portfolio
	watchlist  map[string]model.WatchlistItem
	jobs       map[string]model.AnalysisJob
	signals    []model.AISignal
	ticks      int

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a stub backend with a seeded universe.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.JobStepInterval <= 0 {
		cfg.JobStepInterval = DefaultConfig().JobStepInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		rng:        rand.New(rand.NewPCG(seed, seed)),
		hub:        newHub(),
		quotes:     make(map[string]model.Quote),
		portfolios: make(map[string]model.Portfolio),
		watchlist:  make(map[string]model.WatchlistItem),
		jobs:       make(map[string]model.AnalysisJob),
		done:       make(chan struct{}),
	}
	s.seedUniverse()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/quotes", s.handleQuotes)
	r.Get("/quotes/{symbol}", s.handleQuote)
	r.Get("/market/overview", s.handleOverview)
	r.Get("/market/news", s.handleNews)

	r.Get("/portfolios", s.handleListPortfolios)
	r.Post("/portfolios", s.handleCreatePortfolio)
	r.Put("/portfolios/{id}", s.handleUpdatePortfolio)
	r.Delete("/portfolios/{id}", s.handleDeletePortfolio)

	r.Get("/watchlist", s.handleWatchlist)
	r.Post("/watchlist", s.handleWatchlistAdd)
	r.Delete("/watchlist/{symbol}", s.handleWatchlistRemove)

	r.Post("/analysis", s.handleStartAnalysis)
	r.Get("/analysis/{id}", s.handleAnalysisStatus)
	r.Get("/analysis/{id}/result", s.handleAnalysisResult)
	r.Get("/signals", s.handleSignals)

	r.Get("/ws", s.handleWS)

	s.mux = r
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins the feed loops and, when cfg.Addr is set, serves HTTP.
// The HTTP listener runs on its own goroutine; Start returns immediately.
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.feedLoop(ctx)

		if s.cfg.Addr != "" {
			go func() {
				s.logger.Info("stub backend listening", "addr", s.cfg.Addr)
				if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.logger.Error("stub backend serve failed", "err", err)
				}
			}()
		}
	})
}

// Close stops the feed, disconnects clients and shuts the listener down.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.hub.closeAll()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	})
}

// feedLoop drives the random walk and the periodic extras.
func (s *Server) feedLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick walks every quote and interleaves the slower-moving push types so
// all nine message kinds show up over a short run.
func (s *Server) tick() {
	s.mu.Lock()
	s.ticks++
	tick := s.ticks

	var envs []router.Envelope
	for sym, q := range s.quotes {
		q = s.walkQuote(q)
		s.quotes[sym] = q
		envs = append(envs, mustEnvelope(router.TypeMarketUpdate, q))

		if w, ok := s.watchlist[sym]; ok {
			w.Price, w.Change, w.ChangePercent = q.Price, q.Change, q.ChangePercent
			w.UpdatedAt = q.UpdatedAt
			s.watchlist[sym] = w
			envs = append(envs, mustEnvelope(router.TypeWatchlistUpdate, state.WatchTick{
				Symbol:        sym,
				Price:         q.Price,
				Change:        q.Change,
				ChangePercent: q.ChangePercent,
			}))
		}

		for id, pf := range s.portfolios {
			pos, ok := pf.Positions[sym]
			if !ok {
				continue
			}
			pos.CurrentPrice = q.Price
			pos.Recompute()
			pf.Positions[sym] = pos
			pf.Recompute()
			s.portfolios[id] = pf
			price := q.Price
			envs = append(envs, mustEnvelope(router.TypePortfolioUpdate, state.PositionUpdate{
				PortfolioID:  id,
				Symbol:       sym,
				CurrentPrice: &price,
			}))
		}
	}

	switch tick % 5 {
	case 0:
		i := s.rng.IntN(len(s.sectors))
		s.sectors[i].ChangePercent = round2(s.sectors[i].ChangePercent + 0.1*s.rng.NormFloat64())
		s.sectors[i].UpdatedAt = time.Now().UTC()
		envs = append(envs, mustEnvelope(router.TypeSectorUpdate, s.sectors[i]))
	case 1:
		item := model.NewsItem{
			ID:          uuid.NewString(),
			Headline:    "Synthetic headline " + uuid.NewString()[:8],
			Source:      "stub-wire",
			PublishedAt: time.Now().UTC(),
		}
		s.news = append([]model.NewsItem{item}, s.news...)
		envs = append(envs, mustEnvelope(router.TypeNewsUpdate, item))
	case 2:
		sym := s.randomSymbolLocked()
		sig := model.AISignal{
			ID:         uuid.NewString(),
			Symbol:     sym,
			Action:     []string{"buy", "hold", "sell"}[s.rng.IntN(3)],
			Confidence: round2(0.5 + 0.5*s.rng.Float64()),
			CreatedAt:  time.Now().UTC(),
		}
		s.signals = append([]model.AISignal{sig}, s.signals...)
		envs = append(envs, mustEnvelope(router.TypeAISignal, sig))
	case 3:
		sym := s.randomSymbolLocked()
		q := s.quotes[sym]
		envs = append(envs, mustEnvelope(router.TypeAlertTriggered, model.TriggeredAlert{
			ID:          uuid.NewString(),
			Symbol:      sym,
			Rule:        "price_above",
			Threshold:   round2(q.Price * 0.99),
			Price:       q.Price,
			TriggeredAt: time.Now().UTC(),
		}))
	}
	s.mu.Unlock()

	for _, env := range envs {
		s.hub.broadcast(env)
	}
}

func (s *Server) randomSymbolLocked() string {
	symbols := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols[s.rng.IntN(len(symbols))]
}

// runJob advances one analysis job through its lifecycle, broadcasting
// progress along the way.
func (s *Server) runJob(id string) {
	defer s.wg.Done()

	steps := []struct {
		progress int
		message  string
	}{
		{25, "gathering filings"},
		{50, "scoring fundamentals"},
		{75, "drafting summary"},
	}

	for _, step := range steps {
		select {
		case <-s.done:
			return
		case <-time.After(s.cfg.JobStepInterval):
		}

		s.mu.Lock()
		job, ok := s.jobs[id]
		if !ok {
			s.mu.Unlock()
			return
		}
		job.Status = model.StatusInProgress
		job.Progress = step.progress
		job.Message = step.message
		job.UpdatedAt = time.Now().UTC()
		s.jobs[id] = job
		s.mu.Unlock()

		s.hub.broadcast(mustEnvelope(router.TypeAnalysisProgress, map[string]any{
			"id":       id,
			"status":   model.StatusInProgress,
			"progress": step.progress,
			"message":  step.message,
		}))
	}

	select {
	case <-s.done:
		return
	case <-time.After(s.cfg.JobStepInterval):
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	rec := []string{"buy", "hold"}[s.rng.IntN(2)]
	job.Status = model.StatusCompleted
	job.Progress = 100
	job.Message = ""
	job.Result = makeResult(job.Symbol, rec, round2(0.6+0.35*s.rng.Float64()))
	job.EndedAt = time.Now().UTC()
	job.UpdatedAt = job.EndedAt
	s.jobs[id] = job
	s.mu.Unlock()

	s.hub.broadcast(mustEnvelope(router.TypeAnalysisComplete, map[string]any{
		"id":     id,
		"status": model.StatusCompleted,
		"result": job.Result,
	}))
}

// ----------------------------------------------------------------------------
// REST handlers
// ----------------------------------------------------------------------------

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	s.mu.Lock()
	q, ok := s.quotes[symbol]
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"quote": q})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var want []string
	if csv := r.URL.Query().Get("symbols"); csv != "" {
		want = strings.Split(csv, ",")
	}

	s.mu.Lock()
	quotes := make([]model.Quote, 0, len(s.quotes))
	if want == nil {
		for _, q := range s.quotes {
			quotes = append(quotes, q)
		}
	} else {
		for _, sym := range want {
			if q, ok := s.quotes[strings.ToUpper(strings.TrimSpace(sym))]; ok {
				quotes = append(quotes, q)
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	s.respond(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := api.OverviewResponse{
		Indices: append([]model.MarketIndex(nil), s.indices...),
		Sectors: append([]model.SectorPerformance(nil), s.sectors...),
	}
	s.mu.Unlock()
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	news := append([]model.NewsItem(nil), s.news...)
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]any{"news": news})
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pfs := make([]model.Portfolio, 0, len(s.portfolios))
	for _, pf := range s.portfolios {
		pfs = append(pfs, pf)
	}
	s.mu.Unlock()
	sort.Slice(pfs, func(i, j int) bool { return pfs[i].Name < pfs[j].Name })
	s.respond(w, http.StatusOK, map[string]any{"portfolios": pfs})
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req api.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	pf := s.buildPortfolio(uuid.NewString(), req)
	s.mu.Lock()
	s.portfolios[pf.ID] = pf
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]any{"portfolio": pf})
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	if _, ok := s.portfolios[id]; !ok {
		s.mu.Unlock()
		s.respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	pf := s.buildPortfolio(id, req)
	s.portfolios[id] = pf
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]any{"portfolio": pf})
}

// buildPortfolio materializes a request into a stored portfolio, pricing
// positions off the current quote universe.
func (s *Server) buildPortfolio(id string, req api.PortfolioRequest) model.Portfolio {
	now := time.Now().UTC()
	pf := model.Portfolio{
		ID:        id,
		Name:      req.Name,
		Positions: make(map[string]model.Position, len(req.Positions)),
		UpdatedAt: now,
	}
	for _, in := range req.Positions {
		sym := strings.ToUpper(in.Symbol)
		price := in.AverageCost
		if q, ok := s.quotes[sym]; ok {
			price = q.Price
		}
		pos := model.Position{
			Symbol:       sym,
			Quantity:     in.Quantity,
			AverageCost:  in.AverageCost,
			CurrentPrice: price,
			UpdatedAt:    now,
		}
		pos.Recompute()
		pf.Positions[sym] = pos
	}
	pf.Recompute()
	return pf
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.portfolios[id]
	delete(s.portfolios, id)
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]model.WatchlistItem, 0, len(s.watchlist))
	for _, item := range s.watchlist {
		items = append(items, item)
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	s.respond(w, http.StatusOK, map[string]any{"watchlist": items})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	symbol := strings.ToUpper(req.Symbol)

	s.mu.Lock()
	q, known := s.quotes[symbol]
	if !known {
		s.mu.Unlock()
		s.respondError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	item := model.WatchlistItem{
		Symbol:        symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		AddedAt:       time.Now().UTC(),
	}
	s.watchlist[symbol] = item
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]any{"item": item})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	s.mu.Lock()
	delete(s.watchlist, symbol)
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]string{"removed": symbol})
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req api.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	job := model.AnalysisJob{
		ID:        uuid.NewString(),
		Symbol:    strings.ToUpper(req.Symbol),
		Status:    model.StatusPending,
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runJob(job.ID)

	s.respond(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleAnalysisResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Result == nil {
		s.respondError(w, http.StatusNotFound, "result not ready")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"result": job.Result})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	signals := append([]model.AISignal(nil), s.signals...)
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]any{"signals": signals})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := s.hub.add(conn)
	s.logger.Info("push client connected", "clients", s.hub.count())
	go c.writePump()

	// Hold the connection open; clients only receive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.remove(c)
	conn.Close()
	s.logger.Info("push client disconnected", "clients", s.hub.count())
}

// mustEnvelope wraps payload in a typed push envelope. Payloads are our
// own types, so marshaling cannot fail.
func mustEnvelope(typ string, payload any) router.Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return router.Envelope{Type: typ, Data: data}
}
