package state

import (
	"sort"
	"sync"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// PositionUpdate is a point update for one position inside a portfolio.
// Pointer fields distinguish "absent" from zero so a merge never blindly
// overwrites fields the update does not own.
type PositionUpdate struct {
	PortfolioID  string   `json:"portfolio_id"`
	Symbol       string   `json:"symbol"`
	Quantity     *float64 `json:"quantity,omitempty"`
	AverageCost  *float64 `json:"average_cost,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
}

// Portfolios is the partition for portfolio records and their positions.
type Portfolios struct {
	mu sync.RWMutex

	portfolios map[string]*model.Portfolio
	selected   string

	changes chan struct{}
}

// NewPortfolios creates an empty portfolio partition.
func NewPortfolios() *Portfolios {
	return &Portfolios{
		portfolios: make(map[string]*model.Portfolio),
		changes:    make(chan struct{}, 1),
	}
}

// Replace replaces the whole collection. If nothing is selected yet (or
// the selection vanished), the first portfolio becomes selected.
func (p *Portfolios) Replace(portfolios []model.Portfolio) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.portfolios = make(map[string]*model.Portfolio, len(portfolios))
	for _, pf := range portfolios {
		if pf.ID == "" {
			continue
		}
		cp := clonePortfolio(pf)
		cp.Recompute()
		p.portfolios[pf.ID] = cp
	}

	if _, ok := p.portfolios[p.selected]; !ok {
		p.selected = ""
		for _, pf := range portfolios {
			if pf.ID != "" {
				p.selected = pf.ID
				break
			}
		}
	}

	p.notifyChange()
}

// Upsert inserts or replaces one portfolio (response to create/update).
func (p *Portfolios) Upsert(pf model.Portfolio) {
	if pf.ID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cp := clonePortfolio(pf)
	cp.Recompute()
	p.portfolios[pf.ID] = cp

	if p.selected == "" {
		p.selected = pf.ID
	}

	p.notifyChange()
}

// Remove deletes one portfolio. Unknown IDs are ignored.
func (p *Portfolios) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.portfolios[id]; !ok {
		return
	}
	delete(p.portfolios, id)
	if p.selected == id {
		p.selected = ""
	}

	p.notifyChange()
}

// ApplyUpdate merges a position point update and recomputes the derived
// fields in the same operation. Unknown portfolio IDs are ignored; an
// unknown symbol is inserted when the update carries a quantity.
func (p *Portfolios) ApplyUpdate(u PositionUpdate) {
	if u.PortfolioID == "" || u.Symbol == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pf, ok := p.portfolios[u.PortfolioID]
	if !ok {
		return
	}

	pos, ok := pf.Positions[u.Symbol]
	if !ok {
		if u.Quantity == nil || *u.Quantity <= 0 {
			return
		}
		pos = model.Position{Symbol: u.Symbol}
	}

	// Negative quantities and prices never enter state.
	if u.Quantity != nil && *u.Quantity >= 0 {
		pos.Quantity = *u.Quantity
	}
	if u.AverageCost != nil && *u.AverageCost >= 0 {
		pos.AverageCost = *u.AverageCost
	}
	if u.CurrentPrice != nil && *u.CurrentPrice >= 0 {
		pos.CurrentPrice = *u.CurrentPrice
	}
	pos.UpdatedAt = time.Now().UTC()

	if pf.Positions == nil {
		pf.Positions = make(map[string]model.Position)
	}
	pf.Positions[u.Symbol] = pos

	pf.Recompute()
	pf.UpdatedAt = time.Now().UTC()

	p.notifyChange()
}

// Select sets the active portfolio. Unknown IDs are ignored.
func (p *Portfolios) Select(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.portfolios[id]; !ok {
		return false
	}
	p.selected = id
	p.notifyChange()
	return true
}

// Selected returns the active portfolio ID, empty if none.
func (p *Portfolios) Selected() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// Get returns one portfolio by ID (deep copy).
func (p *Portfolios) Get(id string) (model.Portfolio, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pf, ok := p.portfolios[id]
	if !ok {
		return model.Portfolio{}, false
	}
	return *clonePortfolio(*pf), true
}

// Snapshot returns all portfolios sorted by ID (deep copies).
func (p *Portfolios) Snapshot() []model.Portfolio {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Portfolio, 0, len(p.portfolios))
	for _, pf := range p.portfolios {
		out = append(out, *clonePortfolio(*pf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Changes returns the coalescing change signal channel.
func (p *Portfolios) Changes() <-chan struct{} {
	return p.changes
}

func (p *Portfolios) notifyChange() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// clonePortfolio copies a portfolio including its positions map.
func clonePortfolio(pf model.Portfolio) *model.Portfolio {
	cp := pf
	cp.Positions = make(map[string]model.Position, len(pf.Positions))
	for sym, pos := range pf.Positions {
		cp.Positions[sym] = pos
	}
	return &cp
}
