package engine

import (
	"github.com/shopspring/decimal"

	"live-trader/internal/types"
)

// cashPlaces is the precision cash is rounded to after a fill.
const cashPlaces = 4

// positionManager turns a filled order into the next positions snapshot.
type positionManager struct{}

func newPositionManager() *positionManager {
	return &positionManager{}
}

// apply returns a copy of current with the fill applied. Quantities and cash
// go through decimal so repeated fills do not accumulate float error.
func (pm *positionManager) apply(current types.Positions, side types.Side, symbol string, qty, price float64) types.Positions {
	next := current.Clone()
	q := decimal.NewFromFloat(qty)
	notional := q.Mul(decimal.NewFromFloat(price))
	cash := decimal.NewFromFloat(next.Cash())
	held := decimal.NewFromFloat(next[symbol])

	switch side {
	case types.SideBuy:
		cash = cash.Sub(notional)
		held = held.Add(q)
	case types.SideSell:
		cash = cash.Add(notional)
		held = held.Sub(q)
	}

	next[types.CashKey] = cash.Round(cashPlaces).InexactFloat64()
	next[symbol] = held.InexactFloat64()
	return next
}
