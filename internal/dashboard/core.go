package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leocder07/tavily-stock-research-sub002/internal/api"
	"github.com/leocder07/tavily-stock-research-sub002/internal/backoff"
	"github.com/leocder07/tavily-stock-research-sub002/internal/config"
	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
	"github.com/leocder07/tavily-stock-research-sub002/internal/sampler"
	"github.com/leocder07/tavily-stock-research-sub002/internal/state"
	"github.com/leocder07/tavily-stock-research-sub002/internal/stream"
)

// ErrAlreadyTracking is returned when a tracking poller for a job is
// already running.
var ErrAlreadyTracking = errors.New("analysis job already tracked")

// Core is the sync core. Construct with New, start with Open, and tear
// down with Close.
type Core struct {
	cfg    *config.DashboardConfig
	logger *slog.Logger

	client  *api.Client
	sampler *sampler.Sampler
	parts   router.Partitions
	router  *router.Router
	stream  *stream.Client

	quotePoller    *backoff.Scheduler[[]model.Quote]
	overviewPoller *backoff.Scheduler[*api.OverviewResponse]

	mu       sync.Mutex
	trackers map[string]*backoff.Scheduler[*model.AnalysisJob]

	closeOnce sync.Once
}

// New wires a Core from configuration. It does not connect anywhere;
// call Open for that.
func New(cfg *config.DashboardConfig, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	smp := sampler.New(sampler.Config{
		ReservoirSize:  cfg.Sampler.ReservoirSize,
		ReportInterval: cfg.Sampler.ReportInterval,
	}, logger.With("component", "sampler"))

	clientOpts := []api.ClientOption{
		api.WithTimeout(cfg.Backend.Timeout),
		api.WithRetries(cfg.Backend.MaxRetries, time.Second),
		api.WithLogger(logger.With("component", "api")),
		api.WithRecorder(smp),
	}
	if cfg.Backend.RateLimit > 0 {
		clientOpts = append(clientOpts,
			api.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Backend.RateLimit), cfg.Backend.RateBurst)))
	}
	client := api.NewClient(cfg.Backend.RestURL, cfg.Backend.Token, clientOpts...)

	parts := router.Partitions{
		Market:    state.NewMarket(cfg.Limits.News),
		Portfolio: state.NewPortfolios(),
		Watchlist: state.NewWatchlist(),
		Analysis:  state.NewAnalysis(cfg.Limits.Signals),
		Notices:   state.NewNotices(cfg.Limits.Notifications, cfg.Limits.RecentSearches, cfg.Limits.Alerts),
	}

	rt := router.New(router.DefaultConfig(), parts, smp, logger.With("component", "router"))

	c := &Core{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		sampler:  smp,
		parts:    parts,
		router:   rt,
		trackers: make(map[string]*backoff.Scheduler[*model.AnalysisJob]),
	}

	c.stream = stream.New(stream.Config{
		URL:                cfg.Backend.WSURL,
		Token:              cfg.Backend.Token,
		PingInterval:       cfg.Stream.PingInterval,
		PongTimeout:        cfg.Stream.PongTimeout,
		WriteTimeout:       cfg.Stream.WriteTimeout,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
	}, rt.Post, logger.With("component", "stream"))

	var err error
	c.quotePoller, err = backoff.New[[]model.Quote](pollPolicy(cfg.Pollers.Quotes), logger.With("poller", "quotes"))
	if err != nil {
		return nil, err
	}
	c.overviewPoller, err = backoff.New[*api.OverviewResponse](pollPolicy(cfg.Pollers.Overview), logger.With("poller", "overview"))
	if err != nil {
		return nil, err
	}

	return c, nil
}

func pollPolicy(p config.PollPolicy) backoff.Policy {
	return backoff.Policy{
		InitialDelay: p.InitialDelay,
		MaxDelay:     p.MaxDelay,
		Multiplier:   p.Multiplier,
		MaxAttempts:  p.MaxAttempts,
	}
}

// Open starts the router and push channel, performs the initial load,
// and starts the periodic pollers. Individual load failures are logged,
// not fatal; the pollers and push channel converge the state later.
func (c *Core) Open(ctx context.Context) error {
	if err := c.router.Start(ctx); err != nil {
		return err
	}
	c.stream.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ov, err := c.client.GetMarketOverview(gctx)
		if err != nil {
			c.logger.Warn("initial overview load failed", "err", err)
			return nil
		}
		c.router.PostOverview(ov.Indices, ov.Sectors)
		return nil
	})
	g.Go(func() error {
		pfs, err := c.client.ListPortfolios(gctx)
		if err != nil {
			c.logger.Warn("initial portfolio load failed", "err", err)
			return nil
		}
		c.router.PostPortfolios(pfs)
		return nil
	})
	g.Go(func() error {
		items, err := c.client.GetWatchlist(gctx)
		if err != nil {
			c.logger.Warn("initial watchlist load failed", "err", err)
			return nil
		}
		c.router.PostWatchlist(items)
		return nil
	})
	g.Go(func() error {
		signals, err := c.client.ListSignals(gctx, c.cfg.Limits.Signals)
		if err != nil {
			c.logger.Warn("initial signals load failed", "err", err)
			return nil
		}
		c.router.PostSignals(signals)
		return nil
	})
	g.Go(func() error {
		news, err := c.client.GetMarketNews(gctx, c.cfg.Limits.News)
		if err != nil {
			c.logger.Warn("initial news load failed", "err", err)
			return nil
		}
		c.router.PostNews(news)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.startPollers(ctx)

	c.logger.Info("sync core open", "instance", c.cfg.Instance.ID)
	return nil
}

// startPollers begins the periodic quote and overview refreshes. Both
// run unbounded; their delays settle at the policy maximum, which makes
// them steady-state periodic tasks that automatically slow down when
// the backend misbehaves.
func (c *Core) startPollers(ctx context.Context) {
	err := c.quotePoller.Start(ctx, func(opCtx context.Context) ([]model.Quote, error) {
		symbols := c.watchedSymbols()
		if len(symbols) == 0 {
			return nil, nil
		}
		return c.client.GetQuotes(opCtx, symbols)
	}, backoff.WithOnResult[[]model.Quote](func(quotes []model.Quote) {
		for _, q := range quotes {
			c.router.PostQuote(q)
		}
	}))
	if err != nil {
		c.logger.Warn("quote poller not started", "err", err)
	}

	err = c.overviewPoller.Start(ctx, func(opCtx context.Context) (*api.OverviewResponse, error) {
		return c.client.GetMarketOverview(opCtx)
	}, backoff.WithOnResult[*api.OverviewResponse](func(ov *api.OverviewResponse) {
		c.router.PostOverview(ov.Indices, ov.Sectors)
	}))
	if err != nil {
		c.logger.Warn("overview poller not started", "err", err)
	}
}

// watchedSymbols is the union of watchlist symbols and the selected
// market symbol.
func (c *Core) watchedSymbols() []string {
	symbols := c.parts.Watchlist.Symbols()
	selected := c.parts.Market.Selected()
	if selected == "" {
		return symbols
	}
	for _, s := range symbols {
		if s == selected {
			return symbols
		}
	}
	return append(symbols, selected)
}

// Close stops the pollers, push channel, router, and sampler. Safe to
// call more than once.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.quotePoller.Stop()
		c.overviewPoller.Stop()

		c.mu.Lock()
		for _, tr := range c.trackers {
			tr.Stop()
		}
		c.mu.Unlock()

		c.stream.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.router.Stop(ctx); err != nil {
			c.logger.Warn("router did not drain before shutdown", "err", err)
		}

		c.sampler.Close()
		c.logger.Info("sync core closed")
	})
}
