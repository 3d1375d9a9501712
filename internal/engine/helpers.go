package engine

import (
	"context"
	"sort"

	"live-trader/internal/logger"
	"live-trader/internal/types"
)

// priceUniverse prices the configured universe plus every symbol already
// held. Unpriced symbols are left out of the map.
func (e *Engine) priceUniverse(ctx context.Context, label string, held ...types.Positions) map[string]float64 {
	symbols := map[string]struct{}{}
	for _, s := range e.universe {
		symbols[s] = struct{}{}
	}
	for _, p := range held {
		for _, s := range p.Symbols() {
			symbols[s] = struct{}{}
		}
	}

	out := make(map[string]float64, len(symbols))
	var missing []string
	for s := range symbols {
		if px, ok := e.prices.Price(label, s); ok {
			out[s] = px
		} else {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		logger.Warn(ctx, "Missing prices for period", "label", label, "symbols", missing)
	}
	return out
}

func sideOf(d types.Decision) (types.Side, bool) {
	if d.Symbol == "" || d.Qty <= 0 {
		return "", false
	}
	switch d.Action {
	case types.DecisionBuy:
		return types.SideBuy, true
	case types.DecisionSell:
		return types.SideSell, true
	}
	return "", false
}

func holdReason(d types.Decision) string {
	if d.Action == types.DecisionHold {
		if d.Reason != "" {
			return d.Reason
		}
		return "hold"
	}
	return "invalid_order"
}

func equity(p types.Positions, prices map[string]float64) float64 {
	return p.Equity(func(s string) (float64, bool) {
		v, ok := prices[s]
		return v, ok
	})
}
