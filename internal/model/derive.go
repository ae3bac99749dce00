package model

import "math"

// safeNumber replaces NaN and ±Inf with 0 so a bad division can never
// leak into stored or displayed state.
func safeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Recompute refreshes the derived fields from Quantity, AverageCost and
// CurrentPrice. A zero cost basis yields GainPercent 0, never NaN.
func (p *Position) Recompute() {
	p.Value = safeNumber(p.Quantity * p.CurrentPrice)

	cost := p.Quantity * p.AverageCost
	p.Gain = safeNumber(p.Value - cost)

	if cost == 0 {
		p.GainPercent = 0
		return
	}
	p.GainPercent = safeNumber(p.Gain / cost * 100)
}

// Recompute refreshes every position's derived fields and the portfolio
// totals. Call after any position change.
func (pf *Portfolio) Recompute() {
	var totalValue, totalCost float64

	for sym, pos := range pf.Positions {
		pos.Recompute()
		pf.Positions[sym] = pos
		totalValue += pos.Value
		totalCost += pos.Quantity * pos.AverageCost
	}

	pf.TotalValue = safeNumber(totalValue)
	pf.TotalCost = safeNumber(totalCost)
	pf.TotalGain = safeNumber(totalValue - totalCost)

	if totalCost == 0 {
		pf.TotalGainPercent = 0
		return
	}
	pf.TotalGainPercent = safeNumber(pf.TotalGain / totalCost * 100)
}
