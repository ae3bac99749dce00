package model

import "time"

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// Quote is the latest known price snapshot for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`         // Primary key (e.g., "AAPL")
	Name          string    `json:"name,omitempty"` // Display name
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`         // Signed dollar change vs previous close
	ChangePercent float64   `json:"change_percent"` // Signed percent change
	Volume        int64     `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previous_close"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketIndex is a broad-market index level (e.g., S&P 500).
type MarketIndex struct {
	Symbol        string    `json:"symbol"` // Primary key (e.g., "SPX")
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SectorPerformance is the day's move for one market sector.
type SectorPerformance struct {
	Name          string    `json:"name"` // Primary key (e.g., "Technology")
	ChangePercent float64   `json:"change_percent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewsItem is one market news headline.
type NewsItem struct {
	ID          string    `json:"id"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"` // Tickers the story mentions
	PublishedAt time.Time `json:"published_at"`
}

// -----------------------------------------------------------------------------
// Portfolio Types
// -----------------------------------------------------------------------------

// Position is one holding inside a portfolio.
//
// Value, Gain and GainPercent are derived from Quantity, AverageCost and
// CurrentPrice; call Recompute after changing any of those inputs.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`      // Never negative
	AverageCost  float64   `json:"average_cost"`  // Never negative
	CurrentPrice float64   `json:"current_price"` // Never negative
	Value        float64   `json:"value"`         // Derived: Quantity × CurrentPrice
	Gain         float64   `json:"gain"`          // Derived, may be negative
	GainPercent  float64   `json:"gain_percent"`  // Derived, may be negative
	UpdatedAt    time.Time `json:"updated_at"`
}

// Portfolio is a named collection of positions.
//
// TotalValue, TotalCost, TotalGain and TotalGainPercent are derived from the
// positions; call Recompute after any position change.
type Portfolio struct {
	ID               string              `json:"id"` // Primary key
	Name             string              `json:"name"`
	Positions        map[string]Position `json:"positions"` // Keyed by symbol
	TotalValue       float64             `json:"total_value"`
	TotalCost        float64             `json:"total_cost"`
	TotalGain        float64             `json:"total_gain"`
	TotalGainPercent float64             `json:"total_gain_percent"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// Watchlist Types
// -----------------------------------------------------------------------------

// WatchlistItem is one watched symbol with its latest tick.
type WatchlistItem struct {
	Symbol        string    `json:"symbol"` // Primary key
	Note          string    `json:"note,omitempty"`
	TargetPrice   float64   `json:"target_price,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	AddedAt       time.Time `json:"added_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// Analysis Types
// -----------------------------------------------------------------------------

// JobStatus is the lifecycle state of an analysis job.
//
// Transitions are monotonic: pending → in_progress → {completed | failed}.
// Completed and failed are terminal.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// rank orders statuses for the monotonic-transition guard.
func (s JobStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next respects the
// monotonic lifecycle. Unknown statuses never transition.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// AnalysisJob tracks one backend analysis run.
type AnalysisJob struct {
	ID        string          `json:"id"` // Primary key (backend-assigned)
	Symbol    string          `json:"symbol"`
	Status    JobStatus       `json:"status"`
	Progress  int             `json:"progress"` // 0-100
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"` // Set when Status is failed
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at,omitempty"` // Zero until terminal
	Result    *AnalysisResult `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisResult is the payload of a completed analysis.
type AnalysisResult struct {
	Summary        string                 `json:"summary"`
	Recommendation string                 `json:"recommendation,omitempty"` // buy / hold / sell
	Confidence     float64                `json:"confidence,omitempty"`     // 0-1
	Metrics        map[string]MetricValue `json:"metrics,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// AISignal is one model-generated trading signal.
type AISignal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`     // buy / sell / hold
	Confidence float64   `json:"confidence"` // 0-1
	Rationale  string    `json:"rationale,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Notification Types
// -----------------------------------------------------------------------------

// Notification is one user-facing message produced by the sync core.
type Notification struct {
	ID        string    `json:"id"` // uuid
	Level     string    `json:"level"` // info / warning / error
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggeredAlert records a price alert that fired.
type TriggeredAlert struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Rule        string    `json:"rule"` // e.g., "price_above"
	Threshold   float64   `json:"threshold"`
	Price       float64   `json:"price"` // Price at trigger time
	TriggeredAt time.Time `json:"triggered_at"`
}
