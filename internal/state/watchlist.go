package state

import (
	"sort"
	"sync"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// WatchTick is a point update for one watched symbol's latest price.
type WatchTick struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Watchlist is the partition for watched symbols.
type Watchlist struct {
	mu sync.RWMutex

	items map[string]model.WatchlistItem

	changes chan struct{}
}

// NewWatchlist creates an empty watchlist partition.
func NewWatchlist() *Watchlist {
	return &Watchlist{
		items:   make(map[string]model.WatchlistItem),
		changes: make(chan struct{}, 1),
	}
}

// Replace replaces the whole collection.
func (w *Watchlist) Replace(items []model.WatchlistItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = make(map[string]model.WatchlistItem, len(items))
	for _, it := range items {
		if it.Symbol == "" {
			continue
		}
		w.items[it.Symbol] = it
	}

	w.notifyChange()
}

// Add inserts or replaces one item.
func (w *Watchlist) Add(item model.WatchlistItem) {
	if item.Symbol == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	w.items[item.Symbol] = item

	w.notifyChange()
}

// Remove deletes one symbol. Unknown symbols are ignored.
func (w *Watchlist) Remove(symbol string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.items[symbol]; !ok {
		return
	}
	delete(w.items, symbol)

	w.notifyChange()
}

// ApplyTick merges a price tick into an existing item. Merge-only: a tick
// for a symbol not on the list is dropped, so a removal is never undone
// by a late tick.
func (w *Watchlist) ApplyTick(tick WatchTick) {
	if tick.Symbol == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	item, ok := w.items[tick.Symbol]
	if !ok {
		return
	}

	if tick.Price > 0 {
		item.Price = tick.Price
	}
	item.Change = tick.Change
	item.ChangePercent = tick.ChangePercent
	item.UpdatedAt = time.Now().UTC()
	w.items[tick.Symbol] = item

	w.notifyChange()
}

// Has reports whether a symbol is on the list.
func (w *Watchlist) Has(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.items[symbol]
	return ok
}

// Symbols returns all watched symbols.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.items))
	for sym := range w.items {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns all items ordered by AddedAt, then symbol.
func (w *Watchlist) Snapshot() []model.WatchlistItem {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.WatchlistItem, 0, len(w.items))
	for _, it := range w.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Changes returns the coalescing change signal channel.
func (w *Watchlist) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watchlist) notifyChange() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
