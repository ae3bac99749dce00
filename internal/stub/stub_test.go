package stub

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/api"
	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
	"github.com/leocder07/tavily-stock-research-sub002/internal/stream"
)

func newTestStub(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "" // The httptest server owns the listener.
	cfg.TickInterval = time.Hour
	cfg.JobStepInterval = 10 * time.Millisecond
	cfg.Seed = 7

	s := New(cfg, nil)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// newTestClient wires the real REST client against the stub, which keeps
// the two sides' wire shapes honest.
func newTestClient(t *testing.T, ts *httptest.Server) *api.Client {
	t.Helper()
	return api.NewClient(ts.URL, "", api.WithRetries(0, time.Millisecond))
}

func TestStub_QuoteEndpoints(t *testing.T) {
	_, ts := newTestStub(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	t.Run("known symbol", func(t *testing.T) {
		q, err := client.GetQuote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("GetQuote: %v", err)
		}
		if q.Symbol != "AAPL" || q.Price <= 0 {
			t.Errorf("got %+v, want seeded AAPL quote", q)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		if _, err := client.GetQuote(ctx, "ZZZZ"); err == nil {
			t.Fatal("expected error for unknown symbol")
		}
	})

	t.Run("filtered bulk fetch", func(t *testing.T) {
		quotes, err := client.GetQuotes(ctx, []string{"AAPL", "NVDA", "ZZZZ"})
		if err != nil {
			t.Fatalf("GetQuotes: %v", err)
		}
		if len(quotes) != 2 {
			t.Fatalf("got %d quotes, want 2", len(quotes))
		}
		if quotes[0].Symbol != "AAPL" || quotes[1].Symbol != "NVDA" {
			t.Errorf("got symbols %s, %s", quotes[0].Symbol, quotes[1].Symbol)
		}
	})
}

func TestStub_Overview(t *testing.T) {
	_, ts := newTestStub(t)
	client := newTestClient(t, ts)

	overview, err := client.GetMarketOverview(context.Background())
	if err != nil {
		t.Fatalf("GetMarketOverview: %v", err)
	}
	if len(overview.Indices) != 3 {
		t.Errorf("got %d indices, want 3", len(overview.Indices))
	}
	if len(overview.Sectors) != 4 {
		t.Errorf("got %d sectors, want 4", len(overview.Sectors))
	}
}

func TestStub_PortfolioLifecycle(t *testing.T) {
	_, ts := newTestStub(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	pf, err := client.CreatePortfolio(ctx, api.PortfolioRequest{
		Name: "Test",
		Positions: []api.PortfolioPositionInput{
			{Symbol: "aapl", Quantity: 10, AverageCost: 100},
		},
	})
	if err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}
	if pf.ID == "" {
		t.Fatal("portfolio was not assigned an id")
	}

	// Positions are priced off the quote universe and derived fields
	// are filled in.
	pos, ok := pf.Positions["AAPL"]
	if !ok {
		t.Fatalf("position not normalized to upper case: %v", pf.Positions)
	}
	if pos.CurrentPrice <= 0 || pos.Value != pos.Quantity*pos.CurrentPrice {
		t.Errorf("derived fields not computed: %+v", pos)
	}
	if pf.TotalValue != pos.Value {
		t.Errorf("TotalValue = %v, want %v", pf.TotalValue, pos.Value)
	}

	if err := client.DeletePortfolio(ctx, pf.ID); err != nil {
		t.Fatalf("DeletePortfolio: %v", err)
	}
	if err := client.DeletePortfolio(ctx, pf.ID); err == nil {
		t.Fatal("expected error deleting twice")
	}
}

func TestStub_WatchlistRejectsUnknownSymbol(t *testing.T) {
	_, ts := newTestStub(t)
	client := newTestClient(t, ts)

	if _, err := client.AddWatchlistSymbol(context.Background(), "ZZZZ"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestStub_AnalysisJobRunsToCompletion(t *testing.T) {
	_, ts := newTestStub(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	job, err := client.StartAnalysis(ctx, api.AnalysisRequest{Symbol: "msft"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if job.Status != model.StatusPending || job.Symbol != "MSFT" {
		t.Fatalf("got %+v, want pending MSFT job", job)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := client.GetAnalysisStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetAnalysisStatus: %v", err)
		}
		if got.Status == model.StatusCompleted {
			if got.Progress != 100 || got.Result == nil {
				t.Fatalf("completed job missing result: %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck at %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	result, err := client.GetAnalysisResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetAnalysisResult: %v", err)
	}
	if result.Summary == "" {
		t.Error("result has no summary")
	}
	if got := result.Metrics["market_cap"].Formatted(); got != "$3.1T" {
		t.Errorf("annotated metric round trip: got %q", got)
	}
}

func TestStub_PushFeed(t *testing.T) {
	s, ts := newTestStub(t)

	var mu sync.Mutex
	seen := make(map[string]int)
	handler := func(env router.Envelope) {
		mu.Lock()
		seen[env.Type]++
		mu.Unlock()
	}

	cfg := stream.DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	sc := stream.New(cfg, handler, nil)
	defer sc.Close()
	sc.Start(context.Background())

	// Wait for the subscriber, then drive enough ticks to hit every
	// interleaved message type and one full analysis job.
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	client := newTestClient(t, ts)
	if _, err := client.StartAnalysis(context.Background(), api.AnalysisRequest{Symbol: "GOOG"}); err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.tick()
	}

	want := []string{
		router.TypeMarketUpdate,
		router.TypeWatchlistUpdate,
		router.TypePortfolioUpdate,
		router.TypeSectorUpdate,
		router.TypeNewsUpdate,
		router.TypeAISignal,
		router.TypeAlertTriggered,
		router.TypeAnalysisProgress,
		router.TypeAnalysisComplete,
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		missing := ""
		for _, typ := range want {
			if seen[typ] == 0 {
				missing = typ
				break
			}
		}
		counts := fmt.Sprintf("%v", seen)
		mu.Unlock()
		if missing == "" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw %s; counts: %s", missing, counts)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_DropsWhenClientIsSlow(t *testing.T) {
	h := newHub()
	c := &hubClient{send: make(chan router.Envelope, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	env := mustEnvelope(router.TypeMarketUpdate, model.Quote{Symbol: "AAPL"})
	for i := 0; i < sendBuffer+10; i++ {
		h.broadcast(env)
	}

	if got := h.dropped.Load(); got != 10 {
		t.Errorf("dropped = %d, want 10", got)
	}
	if got := len(c.send); got != sendBuffer {
		t.Errorf("queued = %d, want %d", got, sendBuffer)
	}
}
