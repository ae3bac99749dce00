package dashboard

import (
	"context"

	"github.com/leocder07/tavily-stock-research-sub002/internal/api"
	"github.com/leocder07/tavily-stock-research-sub002/internal/backoff"
	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
	"github.com/leocder07/tavily-stock-research-sub002/internal/sampler"
	"github.com/leocder07/tavily-stock-research-sub002/internal/state"
	"github.com/leocder07/tavily-stock-research-sub002/internal/stream"
)

// SearchQuote looks up a symbol, merges the quote into the market
// partition, and records the search.
func (c *Core) SearchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	q, err := c.client.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.router.PostQuote(*q)
	c.router.PostSearch(symbol)
	return q, nil
}

// SelectSymbol sets the market selection. Returns false when the
// symbol is not in the quote set.
func (c *Core) SelectSymbol(symbol string) bool {
	return c.parts.Market.Select(symbol)
}

// RefreshQuotes replaces the quote set with a fresh fetch of the
// watched symbols.
func (c *Core) RefreshQuotes(ctx context.Context) error {
	symbols := c.watchedSymbols()
	quotes, err := c.client.GetQuotes(ctx, symbols)
	if err != nil {
		return err
	}
	c.router.PostQuotes(quotes)
	return nil
}

// RefreshOverview refetches index levels and sector performance.
func (c *Core) RefreshOverview(ctx context.Context) error {
	ov, err := c.client.GetMarketOverview(ctx)
	if err != nil {
		return err
	}
	c.router.PostOverview(ov.Indices, ov.Sectors)
	return nil
}

// RefreshNews refetches the news list.
func (c *Core) RefreshNews(ctx context.Context) error {
	news, err := c.client.GetMarketNews(ctx, c.cfg.Limits.News)
	if err != nil {
		return err
	}
	c.router.PostNews(news)
	return nil
}

// RefreshPortfolios refetches all portfolios.
func (c *Core) RefreshPortfolios(ctx context.Context) error {
	pfs, err := c.client.ListPortfolios(ctx)
	if err != nil {
		return err
	}
	c.router.PostPortfolios(pfs)
	return nil
}

// CreatePortfolio creates a portfolio on the backend and merges the
// stored copy.
func (c *Core) CreatePortfolio(ctx context.Context, req api.PortfolioRequest) (*model.Portfolio, error) {
	pf, err := c.client.CreatePortfolio(ctx, req)
	if err != nil {
		return nil, err
	}
	c.router.PostPortfolio(*pf)
	return pf, nil
}

// UpdatePortfolio updates a portfolio on the backend and merges the
// stored copy.
func (c *Core) UpdatePortfolio(ctx context.Context, id string, req api.PortfolioRequest) (*model.Portfolio, error) {
	pf, err := c.client.UpdatePortfolio(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.router.PostPortfolio(*pf)
	return pf, nil
}

// DeletePortfolio removes a portfolio on the backend and locally.
func (c *Core) DeletePortfolio(ctx context.Context, id string) error {
	if err := c.client.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	c.router.PostPortfolioRemoval(id)
	return nil
}

// RefreshWatchlist refetches the watchlist.
func (c *Core) RefreshWatchlist(ctx context.Context) error {
	items, err := c.client.GetWatchlist(ctx)
	if err != nil {
		return err
	}
	c.router.PostWatchlist(items)
	return nil
}

// AddWatchlistSymbol adds a symbol to the watchlist.
func (c *Core) AddWatchlistSymbol(ctx context.Context, symbol string) (*model.WatchlistItem, error) {
	item, err := c.client.AddWatchlistSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.router.PostWatchlistAdd(*item)
	return item, nil
}

// RemoveWatchlistSymbol removes a symbol from the watchlist.
func (c *Core) RemoveWatchlistSymbol(ctx context.Context, symbol string) error {
	if err := c.client.RemoveWatchlistSymbol(ctx, symbol); err != nil {
		return err
	}
	c.router.PostWatchlistRemoval(symbol)
	return nil
}

// StartAnalysis asks the backend to begin an analysis run, registers
// the pending job, and starts its tracking poller.
func (c *Core) StartAnalysis(ctx context.Context, symbol, depth string) (*model.AnalysisJob, error) {
	job, err := c.client.StartAnalysis(ctx, api.AnalysisRequest{Symbol: symbol, Depth: depth})
	if err != nil {
		return nil, err
	}
	c.router.PostJobTracked(*job)

	if err := c.TrackAnalysis(ctx, job.ID); err != nil && err != ErrAlreadyTracking {
		c.logger.Warn("analysis tracker not started", "job", job.ID, "err", err)
	}
	return job, nil
}

// TrackAnalysis polls one job's status until it reaches a terminal
// state. Returns ErrAlreadyTracking when a tracker for the job is
// already running.
func (c *Core) TrackAnalysis(ctx context.Context, id string) error {
	c.mu.Lock()
	if tr, ok := c.trackers[id]; ok && tr.Running() {
		c.mu.Unlock()
		return ErrAlreadyTracking
	}

	tr, err := backoff.New[*model.AnalysisJob](pollPolicy(c.cfg.Pollers.Analysis), c.logger.With("poller", "analysis", "job", id))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.trackers[id] = tr
	c.mu.Unlock()

	return tr.Start(ctx, func(opCtx context.Context) (*model.AnalysisJob, error) {
		return c.client.GetAnalysisStatus(opCtx, id)
	},
		backoff.WithOnResult[*model.AnalysisJob](func(job *model.AnalysisJob) {
			c.router.PostJob(*job)
		}),
		backoff.WithStopPredicate[*model.AnalysisJob](func(job *model.AnalysisJob) bool {
			return job.Status.Terminal()
		}),
	)
}

// RefreshSignals refetches the signal list.
func (c *Core) RefreshSignals(ctx context.Context) error {
	signals, err := c.client.ListSignals(ctx, c.cfg.Limits.Signals)
	if err != nil {
		return err
	}
	c.router.PostSignals(signals)
	return nil
}

// Notify mints a local notification.
func (c *Core) Notify(level, title, body string) {
	c.router.PostNotification(level, title, body)
}

// MarkNotificationRead marks one notification read. Returns false when
// the id is unknown.
func (c *Core) MarkNotificationRead(id string) bool {
	return c.parts.Notices.MarkRead(id)
}

// MarkAllNotificationsRead marks every notification read.
func (c *Core) MarkAllNotificationsRead() {
	c.parts.Notices.MarkAllRead()
}

// Snapshot accessors. Each returns a copy; mutating the result never
// touches partition state.

func (c *Core) MarketSnapshot() state.MarketSnapshot {
	return c.parts.Market.Snapshot()
}

func (c *Core) Portfolios() []model.Portfolio {
	return c.parts.Portfolio.Snapshot()
}

func (c *Core) Portfolio(id string) (model.Portfolio, bool) {
	return c.parts.Portfolio.Get(id)
}

func (c *Core) Watchlist() []model.WatchlistItem {
	return c.parts.Watchlist.Snapshot()
}

func (c *Core) AnalysisJobs() []model.AnalysisJob {
	return c.parts.Analysis.Jobs()
}

func (c *Core) AnalysisJob(id string) (model.AnalysisJob, bool) {
	return c.parts.Analysis.Job(id)
}

func (c *Core) Signals() []model.AISignal {
	return c.parts.Analysis.Signals()
}

func (c *Core) Notifications() []model.Notification {
	return c.parts.Notices.Notifications()
}

func (c *Core) UnreadCount() int {
	return c.parts.Notices.UnreadCount()
}

func (c *Core) RecentSearches() []string {
	return c.parts.Notices.Searches()
}

func (c *Core) Alerts() []model.TriggeredAlert {
	return c.parts.Notices.Alerts()
}

// Metrics returns the current telemetry snapshot.
func (c *Core) Metrics() sampler.Report {
	return c.sampler.Snapshot()
}

// RouterStats returns event router counters.
func (c *Core) RouterStats() router.Stats {
	return c.router.Stats()
}

// StreamStats returns push channel counters.
func (c *Core) StreamStats() stream.Stats {
	return c.stream.Stats()
}

// StreamState returns the push channel connection state name.
func (c *Core) StreamState() string {
	return stream.StateName(c.stream.State())
}

// RecordRender counts one UI render of a named view.
func (c *Core) RecordRender(view string) {
	c.sampler.RecordRender(view)
}
