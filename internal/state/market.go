package state

import (
	"sync"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// Market is the partition for quotes, indices, sectors and market news.
type Market struct {
	mu sync.RWMutex

	// Latest quote per symbol.
	quotes map[string]model.Quote

	// Symbol the UI is focused on. Empty until the first non-empty bulk
	// replace establishes the select-first default.
	selected string

	indices map[string]model.MarketIndex
	sectors map[string]model.SectorPerformance
	news    *RingList[model.NewsItem]

	changes chan struct{}
}

// MarketSnapshot is a copy of the market partition state.
type MarketSnapshot struct {
	Quotes   map[string]model.Quote             `json:"quotes"`
	Selected string                             `json:"selected"`
	Indices  map[string]model.MarketIndex       `json:"indices"`
	Sectors  map[string]model.SectorPerformance `json:"sectors"`
	News     []model.NewsItem                   `json:"news"`
}

// NewMarket creates an empty market partition. newsCap bounds the news list.
func NewMarket(newsCap int) *Market {
	return &Market{
		quotes:  make(map[string]model.Quote),
		indices: make(map[string]model.MarketIndex),
		sectors: make(map[string]model.SectorPerformance),
		news:    NewKeyedRingList(newsCap, func(n model.NewsItem) string { return n.ID }),
		changes: make(chan struct{}, 1),
	}
}

// ReplaceQuotes replaces the whole quote collection. If nothing is
// selected yet (or the selection vanished), the first quote of the new
// collection becomes selected.
func (m *Market) ReplaceQuotes(quotes []model.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.quotes = make(map[string]model.Quote, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		m.quotes[q.Symbol] = q
	}

	if _, ok := m.quotes[m.selected]; !ok {
		m.selected = ""
		for _, q := range quotes {
			if q.Symbol != "" {
				m.selected = q.Symbol
				break
			}
		}
	}

	m.notifyChange()
}

// ApplyQuote merges a point update, inserting if the symbol is unknown.
// Applying the same update twice yields the same state.
func (m *Market) ApplyQuote(q model.Quote) {
	if q.Symbol == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.quotes[q.Symbol]
	if !ok {
		cur = model.Quote{Symbol: q.Symbol}
	}
	mergeQuote(&cur, q)
	m.quotes[q.Symbol] = cur

	if m.selected == "" {
		m.selected = q.Symbol
	}

	m.notifyChange()
}

// mergeQuote folds non-empty fields of src into dst. Prices are never
// negative; signed deltas (change) may be.
func mergeQuote(dst *model.Quote, src model.Quote) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Price > 0 {
		dst.Price = src.Price
	}
	dst.Change = src.Change
	dst.ChangePercent = src.ChangePercent
	if src.Volume > 0 {
		dst.Volume = src.Volume
	}
	if src.High > 0 {
		dst.High = src.High
	}
	if src.Low > 0 {
		dst.Low = src.Low
	}
	if src.PreviousClose > 0 {
		dst.PreviousClose = src.PreviousClose
	}
	if !src.UpdatedAt.IsZero() {
		dst.UpdatedAt = src.UpdatedAt
	} else {
		dst.UpdatedAt = time.Now().UTC()
	}
}

// Select sets the active symbol. Unknown symbols are ignored.
func (m *Market) Select(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.quotes[symbol]; !ok {
		return false
	}
	m.selected = symbol
	m.notifyChange()
	return true
}

// Selected returns the active symbol, empty if none.
func (m *Market) Selected() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// Quote returns one quote by symbol.
func (m *Market) Quote(symbol string) (model.Quote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[symbol]
	return q, ok
}

// Symbols returns all known quote symbols.
func (m *Market) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.quotes))
	for sym := range m.quotes {
		out = append(out, sym)
	}
	return out
}

// ReplaceOverview replaces the index and sector collections.
func (m *Market) ReplaceOverview(indices []model.MarketIndex, sectors []model.SectorPerformance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indices = make(map[string]model.MarketIndex, len(indices))
	for _, ix := range indices {
		if ix.Symbol != "" {
			m.indices[ix.Symbol] = ix
		}
	}
	m.sectors = make(map[string]model.SectorPerformance, len(sectors))
	for _, sec := range sectors {
		if sec.Name != "" {
			m.sectors[sec.Name] = sec
		}
	}

	m.notifyChange()
}

// ApplyIndex merges one index update, inserting if absent.
func (m *Market) ApplyIndex(ix model.MarketIndex) {
	if ix.Symbol == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.indices[ix.Symbol]
	if !ok {
		cur = model.MarketIndex{Symbol: ix.Symbol}
	}
	if ix.Name != "" {
		cur.Name = ix.Name
	}
	if ix.Value > 0 {
		cur.Value = ix.Value
	}
	cur.Change = ix.Change
	cur.ChangePercent = ix.ChangePercent
	if !ix.UpdatedAt.IsZero() {
		cur.UpdatedAt = ix.UpdatedAt
	} else {
		cur.UpdatedAt = time.Now().UTC()
	}
	m.indices[ix.Symbol] = cur

	m.notifyChange()
}

// ApplySector merges one sector update, inserting if absent.
func (m *Market) ApplySector(sec model.SectorPerformance) {
	if sec.Name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sec.UpdatedAt.IsZero() {
		sec.UpdatedAt = time.Now().UTC()
	}
	m.sectors[sec.Name] = sec

	m.notifyChange()
}

// AddNews inserts a news item at the front of the bounded list. Items
// with a known ID are moved to the front, not duplicated.
func (m *Market) AddNews(item model.NewsItem) {
	if item.ID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.news.PushFront(item)
	m.notifyChange()
}

// ReplaceNews replaces the news list (front first).
func (m *Market) ReplaceNews(items []model.NewsItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.news.Replace(items)
	m.notifyChange()
}

// Snapshot returns a copy of the partition state.
func (m *Market) Snapshot() MarketSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MarketSnapshot{
		Quotes:   make(map[string]model.Quote, len(m.quotes)),
		Selected: m.selected,
		Indices:  make(map[string]model.MarketIndex, len(m.indices)),
		Sectors:  make(map[string]model.SectorPerformance, len(m.sectors)),
		News:     m.news.Items(),
	}
	for k, v := range m.quotes {
		snap.Quotes[k] = v
	}
	for k, v := range m.indices {
		snap.Indices[k] = v
	}
	for k, v := range m.sectors {
		snap.Sectors[k] = v
	}
	return snap
}

// Changes returns the coalescing change signal channel.
func (m *Market) Changes() <-chan struct{} {
	return m.changes
}

// notifyChange signals the changes channel (non-blocking, coalescing).
func (m *Market) notifyChange() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
