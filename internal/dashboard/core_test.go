package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leocder07/tavily-stock-research-sub002/internal/config"
	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// fakeBackend is a minimal in-memory research backend for core tests.
type fakeBackend struct {
	mu       sync.Mutex
	quotes   map[string]model.Quote
	jobs     map[string]*model.AnalysisJob
	jobPolls map[string]int

	upgrader websocket.Upgrader
	pushMu   sync.Mutex
	push     *websocket.Conn

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		quotes: map[string]model.Quote{
			"AAPL": {Symbol: "AAPL", Price: 150, Change: 1.2},
			"MSFT": {Symbol: "MSFT", Price: 410, Change: -2.1},
		},
		jobs:     make(map[string]*model.AnalysisJob),
		jobPolls: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/market/overview", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"indices": []model.MarketIndex{{Symbol: "SPX", Name: "S&P 500", Value: 5200}},
			"sectors": []model.SectorPerformance{{Name: "Technology", ChangePercent: 0.8}},
		})
	})
	mux.HandleFunc("/market/news", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"news": []model.NewsItem{{ID: "n1", Headline: "Fed holds rates"}},
		})
	})
	mux.HandleFunc("/quotes/", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/quotes/")
		b.mu.Lock()
		q, ok := b.quotes[symbol]
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"quote": q})
	})
	mux.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		var out []model.Quote
		for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			if q, ok := b.quotes[s]; ok {
				out = append(out, q)
			}
		}
		b.mu.Unlock()
		writeJSON(w, map[string]any{"quotes": out})
	})
	mux.HandleFunc("/portfolios", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"portfolios": []model.Portfolio{{ID: "pf-1", Name: "Growth"}},
		})
	})
	mux.HandleFunc("/watchlist", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Symbol string `json:"symbol"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, map[string]any{"item": model.WatchlistItem{Symbol: req.Symbol}})
		default:
			writeJSON(w, map[string]any{
				"watchlist": []model.WatchlistItem{{Symbol: "AAPL"}},
			})
		}
	})
	mux.HandleFunc("/watchlist/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"signals": []model.AISignal{{ID: "s1", Symbol: "NVDA", Action: "buy"}},
		})
	})
	mux.HandleFunc("/analysis", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Symbol string `json:"symbol"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		job := &model.AnalysisJob{ID: "job-" + req.Symbol, Symbol: req.Symbol, Status: model.StatusPending}
		b.mu.Lock()
		b.jobs[job.ID] = job
		b.mu.Unlock()
		writeJSON(w, map[string]any{"job": job})
	})
	mux.HandleFunc("/analysis/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/analysis/")
		b.mu.Lock()
		job, ok := b.jobs[id]
		if ok {
			// Advance one lifecycle step per poll. A negative counter
			// pins the job in_progress forever.
			b.jobPolls[id]++
			switch {
			case b.jobPolls[id] < 0 || b.jobPolls[id] == 1:
				job.Status = model.StatusInProgress
				job.Progress = 50
			default:
				job.Status = model.StatusCompleted
				job.Progress = 100
				job.Result = &model.AnalysisResult{Summary: "looks strong"}
			}
		}
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"job": job})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.pushMu.Lock()
		b.push = conn
		b.pushMu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) pushEnvelope(t *testing.T, frame string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b.pushMu.Lock()
		conn := b.push
		b.pushMu.Unlock()
		if conn != nil {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				t.Fatalf("push write failed: %v", err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("push channel never connected")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func testCore(t *testing.T, b *fakeBackend) *Core {
	t.Helper()
	cfg := config.Default("test")
	cfg.Backend.RestURL = b.server.URL
	cfg.Backend.WSURL = "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
	cfg.Sampler.ReportInterval = 0
	cfg.Pollers.Quotes = config.PollPolicy{InitialDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2}
	cfg.Pollers.Overview = config.PollPolicy{InitialDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond, Multiplier: 2}
	cfg.Pollers.Analysis = config.PollPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Multiplier: 2}

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCore_OpenLoadsInitialState(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitFor(t, func() bool {
		snap := c.MarketSnapshot()
		return len(snap.Indices) == 1 && len(snap.Sectors) == 1 && len(snap.News) == 1
	}, "market overview never loaded")
	waitFor(t, func() bool { return len(c.Portfolios()) == 1 }, "portfolios never loaded")
	waitFor(t, func() bool { return len(c.Watchlist()) == 1 }, "watchlist never loaded")
	waitFor(t, func() bool { return len(c.Signals()) == 1 }, "signals never loaded")
}

func TestCore_QuotePollerMergesTicks(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Watchlist loads AAPL, so the quote poller picks it up.
	waitFor(t, func() bool {
		q, ok := c.MarketSnapshot().Quotes["AAPL"]
		return ok && q.Price == 150
	}, "watched quote never polled")
}

func TestCore_SearchQuote(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	q, err := c.SearchQuote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("SearchQuote failed: %v", err)
	}
	if q.Symbol != "MSFT" || q.Price != 410 {
		t.Errorf("quote = %+v, want MSFT at 410", q)
	}

	waitFor(t, func() bool {
		_, ok := c.MarketSnapshot().Quotes["MSFT"]
		return ok
	}, "searched quote never merged")
	waitFor(t, func() bool {
		searches := c.RecentSearches()
		return len(searches) == 1 && searches[0] == "MSFT"
	}, "search never recorded")

	if _, err := c.SearchQuote(context.Background(), "NOPE"); err == nil {
		t.Error("SearchQuote for unknown symbol should fail")
	}
}

func TestCore_StartAnalysisTracksToCompletion(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	job, err := c.StartAnalysis(context.Background(), "AAPL", "standard")
	if err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	if job.Status != model.StatusPending {
		t.Errorf("initial status = %s, want pending", job.Status)
	}

	waitFor(t, func() bool {
		got, ok := c.AnalysisJob(job.ID)
		return ok && got.Status == model.StatusCompleted
	}, "job never completed")

	got, _ := c.AnalysisJob(job.ID)
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}
	if got.Result == nil || got.Result.Summary != "looks strong" {
		t.Errorf("Result = %+v, want summary preserved", got.Result)
	}

	// The tracker halts on the terminal status, so tracking again is
	// permitted and simply re-fetches.
	waitFor(t, func() bool {
		c.mu.Lock()
		tr := c.trackers[job.ID]
		c.mu.Unlock()
		return tr != nil && !tr.Running()
	}, "tracker never halted")
}

func TestCore_TrackAnalysisTwice(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	// Slow the tracking poller so the first session is still running.
	c.cfg.Pollers.Analysis = config.PollPolicy{InitialDelay: time.Hour, MaxDelay: 2 * time.Hour, Multiplier: 2}

	// Seed a job that stays in_progress.
	b.mu.Lock()
	b.jobs["job-X"] = &model.AnalysisJob{ID: "job-X", Status: model.StatusPending}
	b.jobPolls["job-X"] = -1000
	b.mu.Unlock()

	if err := c.TrackAnalysis(context.Background(), "job-X"); err != nil {
		t.Fatalf("first TrackAnalysis failed: %v", err)
	}
	if err := c.TrackAnalysis(context.Background(), "job-X"); err != ErrAlreadyTracking {
		t.Errorf("second TrackAnalysis = %v, want ErrAlreadyTracking", err)
	}
}

func TestCore_WatchlistOps(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	item, err := c.AddWatchlistSymbol(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("AddWatchlistSymbol failed: %v", err)
	}
	if item.Symbol != "NVDA" {
		t.Errorf("Symbol = %q, want NVDA", item.Symbol)
	}

	waitFor(t, func() bool {
		for _, it := range c.Watchlist() {
			if it.Symbol == "NVDA" {
				return true
			}
		}
		return false
	}, "added symbol never appeared")

	if err := c.RemoveWatchlistSymbol(context.Background(), "NVDA"); err != nil {
		t.Fatalf("RemoveWatchlistSymbol failed: %v", err)
	}
	waitFor(t, func() bool {
		for _, it := range c.Watchlist() {
			if it.Symbol == "NVDA" {
				return false
			}
		}
		return true
	}, "removed symbol lingered")
}

func TestCore_PushEnvelopeReachesPartition(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	b.pushEnvelope(t, `{"type":"market_update","data":{"symbol":"TSLA","price":250}}`)

	waitFor(t, func() bool {
		q, ok := c.MarketSnapshot().Quotes["TSLA"]
		return ok && q.Price == 250
	}, "push tick never reached the market partition")

	b.pushEnvelope(t, `{"type":"alert_triggered","data":{"id":"al-1","symbol":"TSLA","rule":"price_above","threshold":240,"price":250}}`)

	waitFor(t, func() bool { return len(c.Alerts()) == 1 }, "alert never recorded")
	waitFor(t, func() bool { return c.UnreadCount() == 1 }, "alert notification never minted")
}

func TestCore_NotificationsLifecycle(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)
	defer c.Close()

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.Notify("info", "refresh complete", "")
	waitFor(t, func() bool { return c.UnreadCount() == 1 }, "notification never minted")

	notices := c.Notifications()
	if len(notices) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notices))
	}
	if !c.MarkNotificationRead(notices[0].ID) {
		t.Error("MarkNotificationRead = false for known id")
	}
	if got := c.UnreadCount(); got != 0 {
		t.Errorf("UnreadCount = %d, want 0", got)
	}
	if c.MarkNotificationRead("nope") {
		t.Error("MarkNotificationRead = true for unknown id")
	}
}

func TestCore_CloseIdempotent(t *testing.T) {
	b := newFakeBackend(t)
	c := testCore(t, b)

	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.Close()
	c.Close()
}
