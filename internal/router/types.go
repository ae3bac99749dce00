package router

import (
	"encoding/json"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/state"
)

// Envelope is one typed push-channel message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Push message types the dispatch table knows.
const (
	TypeAnalysisProgress = "analysis_progress"
	TypeAnalysisComplete = "analysis_complete"
	TypeAISignal         = "ai_signal"
	TypeMarketUpdate     = "market_update"
	TypeSectorUpdate     = "sector_update"
	TypeNewsUpdate       = "news_update"
	TypePortfolioUpdate  = "portfolio_update"
	TypeWatchlistUpdate  = "watchlist_update"
	TypeAlertTriggered   = "alert_triggered"
)

// Partitions bundles the five state partitions the router writes to.
type Partitions struct {
	Market    *state.Market
	Portfolio *state.Portfolios
	Watchlist *state.Watchlist
	Analysis  *state.Analysis
	Notices   *state.Notices
}

// Recorder receives router timing and error samples. Satisfied by the
// observability sampler; nil disables recording.
type Recorder interface {
	RecordDuration(key string, d time.Duration)
	RecordError(key string)
}

// Config holds router configuration.
type Config struct {
	QueueSize int // Initial event queue capacity (default: 1024)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 1024}
}

// Stats contains runtime counters.
type Stats struct {
	Received  int64
	Applied   int64
	Unknown   int64
	Malformed int64
	Dropped   int64
	Queue     QueueStats
}

// Wire shapes for push payloads.

// quoteWire is the market_update payload.
type quoteWire struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previous_close"`
}

func (w quoteWire) toQuote() model.Quote {
	return model.Quote{
		Symbol:        w.Symbol,
		Name:          w.Name,
		Price:         w.Price,
		Change:        w.Change,
		ChangePercent: w.ChangePercent,
		Volume:        w.Volume,
		High:          w.High,
		Low:           w.Low,
		PreviousClose: w.PreviousClose,
	}
}

// progressWire is the analysis_progress payload.
type progressWire struct {
	ID       string          `json:"id"`
	Status   model.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
}

// completeWire is the analysis_complete payload.
type completeWire struct {
	ID     string                `json:"id"`
	Status model.JobStatus       `json:"status"`
	Error  string                `json:"error"`
	Result *model.AnalysisResult `json:"result"`
}
