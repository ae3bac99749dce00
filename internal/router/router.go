package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
	"github.com/leocder07/tavily-stock-research-sub002/internal/state"
)

// event is one unit of work for the drain goroutine: either an undecoded
// push envelope or a pre-bound request-outcome application.
type event struct {
	env   *Envelope
	apply func()
}

// Router dispatches push-channel envelopes and request outcomes to the
// partitions. All applications run on one goroutine in arrival order,
// run-to-completion, so interleaving is deterministic per partition.
type Router struct {
	cfg      Config
	parts    Partitions
	recorder Recorder
	logger   *slog.Logger

	queue    *Queue[event]
	handlers map[string]func(json.RawMessage) error

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	received  int64
	applied   int64
	unknown   int64
	malformed int64
	dropped   int64
}

// New creates a Router over the given partitions. recorder may be nil.
func New(cfg Config, parts Partitions, recorder Recorder, logger *slog.Logger) *Router {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		cfg:      cfg,
		parts:    parts,
		recorder: recorder,
		logger:   logger,
		queue:    NewQueue[event](cfg.QueueSize),
	}
	r.handlers = r.dispatchTable()
	return r
}

// dispatchTable builds the static type → partition operation mapping.
func (r *Router) dispatchTable() map[string]func(json.RawMessage) error {
	return map[string]func(json.RawMessage) error{
		TypeMarketUpdate: func(data json.RawMessage) error {
			var w quoteWire
			if err := json.Unmarshal(data, &w); err != nil {
				return err
			}
			if w.Symbol == "" {
				return fmt.Errorf("market_update missing symbol")
			}
			r.parts.Market.ApplyQuote(w.toQuote())
			return nil
		},
		TypeSectorUpdate: func(data json.RawMessage) error {
			var sec model.SectorPerformance
			if err := json.Unmarshal(data, &sec); err != nil {
				return err
			}
			if sec.Name == "" {
				return fmt.Errorf("sector_update missing name")
			}
			r.parts.Market.ApplySector(sec)
			return nil
		},
		TypeNewsUpdate: func(data json.RawMessage) error {
			var item model.NewsItem
			if err := json.Unmarshal(data, &item); err != nil {
				return err
			}
			if item.ID == "" {
				return fmt.Errorf("news_update missing id")
			}
			r.parts.Market.AddNews(item)
			return nil
		},
		TypePortfolioUpdate: func(data json.RawMessage) error {
			var u state.PositionUpdate
			if err := json.Unmarshal(data, &u); err != nil {
				return err
			}
			if u.PortfolioID == "" || u.Symbol == "" {
				return fmt.Errorf("portfolio_update missing portfolio_id or symbol")
			}
			r.parts.Portfolio.ApplyUpdate(u)
			return nil
		},
		TypeWatchlistUpdate: func(data json.RawMessage) error {
			var tick state.WatchTick
			if err := json.Unmarshal(data, &tick); err != nil {
				return err
			}
			if tick.Symbol == "" {
				return fmt.Errorf("watchlist_update missing symbol")
			}
			r.parts.Watchlist.ApplyTick(tick)
			return nil
		},
		TypeAnalysisProgress: func(data json.RawMessage) error {
			var w progressWire
			if err := json.Unmarshal(data, &w); err != nil {
				return err
			}
			if w.ID == "" {
				return fmt.Errorf("analysis_progress missing id")
			}
			r.parts.Analysis.ApplyProgress(w.ID, w.Status, w.Progress, w.Message)
			return nil
		},
		TypeAnalysisComplete: func(data json.RawMessage) error {
			var w completeWire
			if err := json.Unmarshal(data, &w); err != nil {
				return err
			}
			if w.ID == "" {
				return fmt.Errorf("analysis_complete missing id")
			}
			status := w.Status
			if !status.Terminal() {
				status = model.StatusCompleted
				if w.Error != "" {
					status = model.StatusFailed
				}
			}
			r.parts.Analysis.Complete(w.ID, status, w.Error, w.Result)
			return nil
		},
		TypeAISignal: func(data json.RawMessage) error {
			var sig model.AISignal
			if err := json.Unmarshal(data, &sig); err != nil {
				return err
			}
			if sig.ID == "" {
				return fmt.Errorf("ai_signal missing id")
			}
			r.parts.Analysis.AddSignal(sig)
			return nil
		},
		TypeAlertTriggered: func(data json.RawMessage) error {
			var alert model.TriggeredAlert
			if err := json.Unmarshal(data, &alert); err != nil {
				return err
			}
			if alert.ID == "" {
				return fmt.Errorf("alert_triggered missing id")
			}
			r.parts.Notices.ApplyAlert(alert)
			return nil
		},
	}
}

// Start begins draining the event queue.
func (r *Router) Start(ctx context.Context) error {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.drainLoop()

		// Context cancellation closes the queue, which ends the drain
		// loop after the remaining events are applied.
		go func() {
			<-ctx.Done()
			r.queue.Close()
		}()

		r.logger.Info("event router started", "queue_size", r.cfg.QueueSize)
	})
	return nil
}

// Stop closes the queue and waits for the drain loop to finish applying
// what was already enqueued.
func (r *Router) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.queue.Close()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
		return ctx.Err()
	}
}

// Post enqueues a push-channel envelope.
func (r *Router) Post(env Envelope) {
	r.enqueue(event{env: &env})
}

// PostQuotes enqueues a bulk quote replacement.
func (r *Router) PostQuotes(quotes []model.Quote) {
	r.enqueue(event{apply: func() { r.parts.Market.ReplaceQuotes(quotes) }})
}

// PostQuote enqueues a single-quote merge.
func (r *Router) PostQuote(q model.Quote) {
	r.enqueue(event{apply: func() { r.parts.Market.ApplyQuote(q) }})
}

// PostOverview enqueues a market overview replacement.
func (r *Router) PostOverview(indices []model.MarketIndex, sectors []model.SectorPerformance) {
	r.enqueue(event{apply: func() { r.parts.Market.ReplaceOverview(indices, sectors) }})
}

// PostNews enqueues a news list replacement.
func (r *Router) PostNews(items []model.NewsItem) {
	r.enqueue(event{apply: func() { r.parts.Market.ReplaceNews(items) }})
}

// PostPortfolios enqueues a bulk portfolio replacement.
func (r *Router) PostPortfolios(portfolios []model.Portfolio) {
	r.enqueue(event{apply: func() { r.parts.Portfolio.Replace(portfolios) }})
}

// PostPortfolio enqueues a portfolio upsert.
func (r *Router) PostPortfolio(pf model.Portfolio) {
	r.enqueue(event{apply: func() { r.parts.Portfolio.Upsert(pf) }})
}

// PostPortfolioRemoval enqueues a portfolio removal.
func (r *Router) PostPortfolioRemoval(id string) {
	r.enqueue(event{apply: func() { r.parts.Portfolio.Remove(id) }})
}

// PostWatchlist enqueues a watchlist replacement.
func (r *Router) PostWatchlist(items []model.WatchlistItem) {
	r.enqueue(event{apply: func() { r.parts.Watchlist.Replace(items) }})
}

// PostWatchlistAdd enqueues a watchlist insertion.
func (r *Router) PostWatchlistAdd(item model.WatchlistItem) {
	r.enqueue(event{apply: func() { r.parts.Watchlist.Add(item) }})
}

// PostWatchlistRemoval enqueues a watchlist removal.
func (r *Router) PostWatchlistRemoval(symbol string) {
	r.enqueue(event{apply: func() { r.parts.Watchlist.Remove(symbol) }})
}

// PostJobTracked enqueues registration of a freshly-started job.
func (r *Router) PostJobTracked(job model.AnalysisJob) {
	r.enqueue(event{apply: func() { r.parts.Analysis.Track(job) }})
}

// PostJob enqueues a fetched job status merge.
func (r *Router) PostJob(job model.AnalysisJob) {
	r.enqueue(event{apply: func() { r.parts.Analysis.ApplyJob(job) }})
}

// PostSearch enqueues a recent-search record.
func (r *Router) PostSearch(symbol string) {
	r.enqueue(event{apply: func() { r.parts.Notices.RecordSearch(symbol) }})
}

// PostNotification enqueues a locally minted notification.
func (r *Router) PostNotification(level, title, body string) {
	r.enqueue(event{apply: func() { r.parts.Notices.Push(level, title, body) }})
}

// PostSignals enqueues a signal list replacement.
func (r *Router) PostSignals(signals []model.AISignal) {
	r.enqueue(event{apply: func() { r.parts.Analysis.ReplaceSignals(signals) }})
}

// Stats returns current counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Received:  r.received,
		Applied:   r.applied,
		Unknown:   r.unknown,
		Malformed: r.malformed,
		Dropped:   r.dropped,
		Queue:     r.queue.Stats(),
	}
}

func (r *Router) enqueue(ev event) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	if !r.queue.Push(ev) {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// drainLoop applies events one at a time, in arrival order.
func (r *Router) drainLoop() {
	defer r.wg.Done()

	for {
		ev, ok := r.queue.Receive()
		if !ok {
			return
		}
		r.process(ev)
	}
}

func (r *Router) process(ev event) {
	start := time.Now()

	if ev.apply != nil {
		ev.apply()
		r.mu.Lock()
		r.applied++
		r.mu.Unlock()
		r.record("router.apply", start, false)
		return
	}

	handler, ok := r.handlers[ev.env.Type]
	if !ok {
		r.mu.Lock()
		r.unknown++
		r.mu.Unlock()
		r.logger.Debug("skipping unknown message type", "type", ev.env.Type)
		return
	}

	if err := handler(ev.env.Data); err != nil {
		r.mu.Lock()
		r.malformed++
		r.mu.Unlock()
		r.logger.Warn("dropping malformed message",
			"type", ev.env.Type,
			"err", err,
		)
		r.record("router."+ev.env.Type, start, true)
		return
	}

	r.mu.Lock()
	r.applied++
	r.mu.Unlock()
	r.record("router."+ev.env.Type, start, false)
}

// record reports to the sampler; recording never blocks or fails routing.
func (r *Router) record(key string, start time.Time, failed bool) {
	if r.recorder == nil {
		return
	}
	r.recorder.RecordDuration(key, time.Since(start))
	if failed {
		r.recorder.RecordError(key)
	}
}
