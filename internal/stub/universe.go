package stub

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// seedUniverse populates the in-memory backend with a small but complete
// market: quotes, indices, sectors, news, a portfolio, a watchlist and
// one starter signal.
func (s *Server) seedUniverse() {
	now := time.Now().UTC()

	seeds := []struct {
		symbol string
		name   string
		price  float64
	}{
		{"AAPL", "Apple Inc.", 232.50},
		{"MSFT", "Microsoft Corporation", 418.20},
		{"NVDA", "NVIDIA Corporation", 131.75},
		{"GOOG", "Alphabet Inc.", 176.40},
		{"AMZN", "Amazon.com Inc.", 186.90},
	}
	for _, sd := range seeds {
		s.quotes[sd.symbol] = model.Quote{
			Symbol:        sd.symbol,
			Name:          sd.name,
			Price:         sd.price,
			PreviousClose: sd.price,
			High:          sd.price,
			Low:           sd.price,
			Volume:        int64(s.rng.IntN(5_000_000)),
			UpdatedAt:     now,
		}
	}

	s.indices = []model.MarketIndex{
		{Symbol: "SPX", Name: "S&P 500", Value: 5620.85, UpdatedAt: now},
		{Symbol: "IXIC", Name: "NASDAQ Composite", Value: 17725.30, UpdatedAt: now},
		{Symbol: "DJI", Name: "Dow Jones Industrial Average", Value: 41175.08, UpdatedAt: now},
	}
	s.sectors = []model.SectorPerformance{
		{Name: "Technology", ChangePercent: 0.9, UpdatedAt: now},
		{Name: "Financials", ChangePercent: 0.3, UpdatedAt: now},
		{Name: "Energy", ChangePercent: -0.5, UpdatedAt: now},
		{Name: "Healthcare", ChangePercent: 0.1, UpdatedAt: now},
	}
	s.news = []model.NewsItem{
		{
			ID:          uuid.NewString(),
			Headline:    "Fed minutes point to a September rate cut",
			Source:      "stub-wire",
			Symbols:     []string{"SPX"},
			PublishedAt: now,
		},
		{
			ID:          uuid.NewString(),
			Headline:    "Chip demand keeps data-center capex climbing",
			Source:      "stub-wire",
			Symbols:     []string{"NVDA", "AMZN"},
			PublishedAt: now,
		},
	}

	pf := model.Portfolio{
		ID:   uuid.NewString(),
		Name: "Core Holdings",
		Positions: map[string]model.Position{
			"AAPL": {Symbol: "AAPL", Quantity: 40, AverageCost: 180.00, CurrentPrice: 232.50, UpdatedAt: now},
			"MSFT": {Symbol: "MSFT", Quantity: 15, AverageCost: 350.00, CurrentPrice: 418.20, UpdatedAt: now},
		},
		UpdatedAt: now,
	}
	for sym, pos := range pf.Positions {
		pos.Recompute()
		pf.Positions[sym] = pos
	}
	pf.Recompute()
	s.portfolios[pf.ID] = pf

	for _, sym := range []string{"AAPL", "NVDA"} {
		q := s.quotes[sym]
		s.watchlist[sym] = model.WatchlistItem{
			Symbol:  sym,
			Price:   q.Price,
			AddedAt: now,
		}
	}

	s.signals = []model.AISignal{{
		ID:         uuid.NewString(),
		Symbol:     "NVDA",
		Action:     "buy",
		Confidence: 0.72,
		Rationale:  "momentum plus earnings revision breadth",
		CreatedAt:  now,
	}}
}

// walkQuote advances one quote a random step and refreshes its derived
// fields. Prices never walk below one dollar.
func (s *Server) walkQuote(q model.Quote) model.Quote {
	step := q.Price * 0.002 * s.rng.NormFloat64()
	q.Price = round2(q.Price + step)
	if q.Price < 1 {
		q.Price = 1
	}
	q.Change = round2(q.Price - q.PreviousClose)
	if q.PreviousClose > 0 {
		q.ChangePercent = round2(q.Change / q.PreviousClose * 100)
	}
	if q.Price > q.High {
		q.High = q.Price
	}
	if q.Low == 0 || q.Price < q.Low {
		q.Low = q.Price
	}
	q.Volume += int64(s.rng.IntN(25_000))
	q.UpdatedAt = time.Now().UTC()
	return q
}

// makeResult fabricates a plausible completed-analysis payload, mixing
// bare scalars with annotated metric values.
func makeResult(symbol string, rec string, confidence float64) *model.AnalysisResult {
	return &model.AnalysisResult{
		Summary:        symbol + " fundamentals screen " + rec,
		Recommendation: rec,
		Confidence:     confidence,
		Metrics: map[string]model.MetricValue{
			"pe_ratio": model.NewMetric(27.4),
			"market_cap": model.NewAnnotatedMetric(3.1e12, "USD", "$3.1T",
				"total market capitalization"),
			"revenue_growth": model.NewAnnotatedMetric(0.11, "ratio", "11%",
				"trailing twelve month revenue growth"),
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
