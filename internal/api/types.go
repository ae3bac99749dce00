package api

import "github.com/leocder07/tavily-stock-research-sub002/internal/model"

// Response envelopes used by the backend REST API.

type quoteResponse struct {
	Quote model.Quote `json:"quote"`
}

type quotesResponse struct {
	Quotes []model.Quote `json:"quotes"`
}

// OverviewResponse is the market overview payload.
type OverviewResponse struct {
	Indices []model.MarketIndex       `json:"indices"`
	Sectors []model.SectorPerformance `json:"sectors"`
}

type newsResponse struct {
	News []model.NewsItem `json:"news"`
}

type portfoliosResponse struct {
	Portfolios []model.Portfolio `json:"portfolios"`
}

type portfolioResponse struct {
	Portfolio model.Portfolio `json:"portfolio"`
}

type watchlistResponse struct {
	Watchlist []model.WatchlistItem `json:"watchlist"`
}

type watchlistItemResponse struct {
	Item model.WatchlistItem `json:"item"`
}

type jobResponse struct {
	Job model.AnalysisJob `json:"job"`
}

type jobsResponse struct {
	Jobs []model.AnalysisJob `json:"jobs"`
}

type resultResponse struct {
	Result model.AnalysisResult `json:"result"`
}

type signalsResponse struct {
	Signals []model.AISignal `json:"signals"`
}

// PortfolioRequest is the create/update payload for a portfolio.
type PortfolioRequest struct {
	Name      string                   `json:"name"`
	Positions []PortfolioPositionInput `json:"positions,omitempty"`
}

// PortfolioPositionInput is one position in a portfolio request.
type PortfolioPositionInput struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// AnalysisRequest starts an analysis run.
type AnalysisRequest struct {
	Symbol string `json:"symbol"`
	Depth  string `json:"depth,omitempty"` // quick / standard / deep
}
